// SPDX-License-Identifier: MIT

//go:build !linux

package media

// NewSource returns ErrUnsupported; only MPRIS2 is implemented.
func NewSource() (Source, error) {
	return nil, ErrUnsupported
}
