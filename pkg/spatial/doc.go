// Package spatial provides a 2D point index over node embedding
// coordinates for viewport queries.
//
// The index wraps an R-tree built once from a loaded graph; after that it
// is read-only and safe for concurrent Search calls from the request path.
// Viewport boxes are expanded by a fractional margin before lookup so
// that edges crossing the viewport border still resolve both endpoints.
package spatial
