package web

import "embed"

// Assets embeds bundled binary assets, including the default watermark image.
//
//go:embed assets/*
var Assets embed.FS

// DefaultWatermarkPath is the embedded location of the stock watermark.
const DefaultWatermarkPath = "assets/watermark.png"
