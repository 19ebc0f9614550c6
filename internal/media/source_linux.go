// SPDX-License-Identifier: MIT

//go:build linux

package media

// NewSource returns the platform media session source.
func NewSource() (Source, error) {
	return NewMPRISSource()
}
