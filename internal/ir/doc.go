// Package ir provides the foundational types shared by every ormsql package:
// compiled entity metadata (EntitySpec and friends) and the constrained
// literal value model (IRValue) used for filter operands and mutation values.
//
// This package contains type definitions and serialization only. All other
// internal packages import ir; ir imports nothing internal.
//
// Key design constraints:
//   - Metadata slices preserve declaration order (select lists depend on it)
//   - All JSON tags use snake_case
//   - Canonical JSON (MarshalCanonical) is the only input to fingerprints
package ir
