// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package rvvm

// status is the coarse run state of a frame: still running, or terminated by
// revert, return, or fault. The specific athena.StatusCode of a fault is kept
// alongside it in frame.faultStatus.
type status uint8

const (
	statusRunning status = iota
	statusReverted
	statusReturned
	statusFault
)
