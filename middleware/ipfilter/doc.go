// Copyright 2025 The Routed Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package ipfilter gates requests on the resolved client address
// against allow and deny CIDR lists.
//
//	mw, err := ipfilter.New(
//	    ipfilter.WithAllow("10.0.0.0/8"),
//	    ipfilter.WithDeny("10.13.0.0/16"),
//	)
//
// The allow list always wins, then the deny list, then the default
// action (allow, unless WithDefaultDeny). Bare addresses count as
// single-host ranges. Rejected requests receive 403 Forbidden.
//
// The filter sees the address the engine resolved, so trusted-proxy
// forwarding configured on the engine applies before filtering.
package ipfilter
