// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package chain provides the registry of partition schemes.
package chain

import (
	"github.com/siderolabs/gen/xslices"

	"github.com/siderolabs/go-retrodisk/partmap/internal/scheme"
	"github.com/siderolabs/go-retrodisk/partmap/internal/schemes/apm"
	"github.com/siderolabs/go-retrodisk/partmap/internal/schemes/cffa"
	"github.com/siderolabs/go-retrodisk/partmap/internal/schemes/dos800"
	"github.com/siderolabs/go-retrodisk/partmap/internal/schemes/focusdrive"
	"github.com/siderolabs/go-retrodisk/partmap/internal/schemes/macts"
	"github.com/siderolabs/go-retrodisk/partmap/internal/schemes/microdrive"
	"github.com/siderolabs/go-retrodisk/partmap/internal/schemes/ppm"
)

// Chain is an ordered list of schemes.
type Chain []scheme.Scheme

// Names returns the names of the schemes in the chain.
func (chain Chain) Names() []string {
	return xslices.Map(chain, scheme.Scheme.Name)
}

// Default returns the schemes in probing order: schemes with a signature first, heuristics last.
func Default() Chain {
	return Chain{
		&apm.Scheme{},
		&microdrive.Scheme{},
		&focusdrive.Scheme{},
		&macts.Scheme{},
		&dos800.Scheme{},
		&ppm.Scheme{},
		&cffa.Scheme{},
	}
}
