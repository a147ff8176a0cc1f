// Copyright 2013-2016 yinqiwen and contributors. Use of this source code is
// governed by a BSD-style license that can be found in the LICENSE file.

// Package engine defines the storage adapter surface: a synchronous,
// context-scoped API over an ordered KV backend with per-namespace
// isolation, merge operators, and TTL expiry (checked by the backend on
// read, and optionally swept ahead of reads by TTLSweeper).
//
// Engine itself is backend-agnostic; package enginepebble supplies the
// concrete, pebble-backed implementation.
package engine
