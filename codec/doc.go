// Copyright 2013-2016 yinqiwen and contributors. Use of this source code is
// governed by a BSD-style license that can be found in the LICENSE file.

// Package codec implements the on-disk key and value formats for the
// storage engine: KeyObject encodes a logical (namespace, user key,
// element-type, sub-elements) tuple into a byte string; ValueObject encodes
// a typed record, or (Type == KeyMerge) one deferred merge operand.
//
// The raw byte order of an encoded key does not match KeyObject.Compare
// for user keys of different lengths (the key is length-prefixed), so the
// engine orders stored keys by decoding them and calling KeyObject.Compare.
//
// Namespace is deliberately not part of the encoded key — it is carried
// out-of-band by routing to a per-namespace store (see package engine) —
// so KeyObject.Encode only ever produces the user-key/type/elements
// portion of the wire format.
package codec
