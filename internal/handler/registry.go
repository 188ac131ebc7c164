package handler

import "log/slog"

// ForFanStudio builds the router for the multiplexed FAN Studio connection:
// one frame reaches exactly one agency handler.
func ForFanStudio(log *slog.Logger) FrameParser {
	return NewFanStudioRouter(log)
}

// ForP2P returns the parser for the P2P connection. The frame code makes
// the three handlers mutually exclusive, so the first match wins.
func ForP2P(log *slog.Logger) FrameParser {
	return Sequence(
		NewP2PEEWHandler(log),
		NewP2PQuakeInfoHandler(log),
		NewP2PTsunamiHandler(log),
	)
}

// ForWolfx maps each Wolfx connection name to its parser.
func ForWolfx(log *slog.Logger) map[string]FrameParser {
	return map[string]FrameParser{
		"wolfx_cenc_eew":    Single(NewWolfxCENCEEWHandler(log)),
		"wolfx_cwa_eew":     Single(NewWolfxCWAEEWHandler(log)),
		"wolfx_jma_eew":     Single(NewWolfxJMAEEWHandler(log)),
		"wolfx_cenc_eqlist": Single(NewWolfxCENCListHandler(log)),
		"wolfx_jma_eqlist":  Single(NewWolfxJMAListHandler(log)),
	}
}
