// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

//go:build !unix

package block

const openFlags = 0

// TryLock is a no-op on this platform.
func (d *Device) TryLock(bool) error { return nil }

// Unlock is a no-op on this platform.
func (d *Device) Unlock() error { return nil }
