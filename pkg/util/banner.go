package util

import (
	"fmt"

	"github.com/common-nighthawk/go-figure"
)

// ANSI 颜色常量
const (
	ColorReset  = "\x1b[0m"
	ColorRed    = "\x1b[1;31m"
	ColorGreen  = "\x1b[1;32m"
	ColorYellow = "\x1b[1;33m"
	ColorBlue   = "\x1b[1;34m"
	ColorCyan   = "\x1b[1;36m"
)

var colorCodes = map[string]string{
	"red":    ColorRed,
	"green":  ColorGreen,
	"yellow": ColorYellow,
	"blue":   ColorBlue,
	"cyan":   ColorCyan,
}

// PrintBanner 打印统一颜色的 ASCII banner
func PrintBanner(text string, color string) {
	fig := figure.NewFigure(text, "", true)

	ansiColor, ok := colorCodes[color]
	if !ok {
		ansiColor = ColorReset
	}
	for _, line := range fig.Slicify() {
		fmt.Println(ansiColor + line + ColorReset)
	}
}
