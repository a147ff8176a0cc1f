// Copyright 2013-2016 yinqiwen and contributors. Use of this source code is
// governed by a BSD-style license that can be found in the LICENSE file.

// Package rangespec parses the bound strings ZRANGEBYSCORE and
// ZRANGEBYLEX-style operations accept into the {min, max, contain_min,
// contain_max} tuples a sorted-set range scan is built from.
package rangespec
