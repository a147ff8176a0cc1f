// Copyright 2013-2016 yinqiwen and contributors. Use of this source code is
// governed by a BSD-style license that can be found in the LICENSE file.

// Package enginepebble implements engine.Engine on top of
// github.com/cockroachdb/pebble, mapping each namespace to its own
// *pebble.DB opened in a subdirectory of the engine's root directory.
//
// Pebble has no native column-family concept (unlike the RocksDB backend
// the original engine targets); one store per namespace directory gives
// equivalent namespace-level isolation for iteration, compaction, and
// drop, without sharing a WAL/manifest across namespaces the way RocksDB
// column families do.
package enginepebble
