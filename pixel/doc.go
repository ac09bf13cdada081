// Package pixel implements the 1-bit frame buffer used for e-paper panels.
//
// The image type is compatible with Go's native [color.Color] and
// [image.Image] / [draw.Image] interfaces, so frames can be composed with the
// standard library, the draw package and font drawers alike.
package pixel
