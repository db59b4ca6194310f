// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines the data structures shared by the check client:
// requests sent to the detection engine, the raw task results it returns,
// and the aggregated reports built from them.
package types
