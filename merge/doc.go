// Copyright 2013-2016 yinqiwen and contributors. Use of this source code is
// governed by a BSD-style license that can be found in the LICENSE file.

// Package merge implements the value-codec-aware merge operator (C6): a
// pebble base.Merger that composes an ordered list of deferred
// read-modify-write operands — each itself a codec.ValueObject with
// Type == codec.KeyMerge — into a base record.
package merge
