// Copyright 2013-2016 yinqiwen and contributors. Use of this source code is
// governed by a BSD-style license that can be found in the LICENSE file.

// Package data implements the tagged scalar primitive shared by every key
// element and value element in the storage codec: a nil, a signed 64-bit
// integer, a 64-bit float, or a bounded byte string, with a single
// self-delimiting wire encoding and a total order (Compare). Only the float
// encoding preserves that order as raw bytes; integers are written as a
// zig-zag signed varint and strings behind a length prefix, so for those
// kinds raw byte order and Compare disagree.
//
// A Value may either own its string bytes or borrow a view into a decode
// buffer. Values produced by decoding an iterator's raw key/value bytes
// borrow by default for zero-copy reads; call ToMutableStr (or
// Value.Clone) before the decode buffer is reused or discarded.
package data
