// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package benchproc turns raw harness benchmark names into the
// configuration keys results are grouped by, and assigns each key a
// category for reporting.
//
// A raw name such as
//
//	fib_libfork<lazy_pool, numa_strategy::seq>/4/real_time
//
// is canonicalized by splitting it on "/", dropping the "real_time"
// marker and every purely numeric segment (the harness's argument and
// thread-count components), concatenating the remaining segments, and
// folding the "seq" spelling of the fan-out strategy into "fan":
//
//	fib_libfork<lazy_pool, numa_strategy::fan>
//
// Two measurements with the same key and the same rounded thread count
// are repetitions of the same experiment.
//
// The typical steps for processing a stream of records are:
//
// 1. Compute the key of each record with Canonical.
//
// 2. Drop records whose raw name satisfies Excluded. This removes the
// baseline configurations (see Reserved) and variants that are not
// plotted.
//
// 3. Group the remaining records by key and thread count, and look up
// the Category of each key with a Classifier.
package benchproc
