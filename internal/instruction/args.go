package instruction

import (
	"strconv"
	"strings"

	"style-lock-studio/internal/aspect"
)

// Options is the loose, user-facing form of an assembly request, as typed in
// a caption or on the command line.
type Options struct {
	Mode        Mode
	BlendWeight int
	Enhance     EnhanceParameters
	AspectRatio aspect.Ratio // optional override
	Notes       string
}

func DefaultOptions() Options {
	return Options{
		Mode:        ModePlanStyleLock,
		BlendWeight: 80,
		Enhance:     DefaultEnhanceParameters(),
	}
}

// ParseArgs reads whitespace separated tokens on top of defaults. Values that
// do not parse are left at their defaults; unrecognised words end up in
// Notes. Range checks are left to Assemble.
func ParseArgs(raw string, defaults Options) Options {
	opts := defaults
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return opts
	}

	var notes []string
	for _, tok := range strings.Fields(raw) {
		orig := tok
		tok = strings.ToLower(strings.TrimSpace(tok))
		if tok == "" {
			continue
		}

		if m, err := ParseMode(tok); err == nil {
			opts.Mode = m
			continue
		}

		key, value, hasValue := strings.Cut(tok, "=")
		if hasValue {
			switch key {
			case "mode", "m":
				if m, err := ParseMode(value); err == nil {
					opts.Mode = m
					continue
				}
			case "blend", "weight", "b":
				if n, ok := parsePercent(value); ok {
					opts.BlendWeight = n
					continue
				}
			case "texture", "tex":
				if n, ok := parsePercent(value); ok {
					opts.Enhance.Texture = n
					continue
				}
			case "smoothing", "smooth":
				if n, ok := parsePercent(value); ok {
					opts.Enhance.Smoothing = n
					continue
				}
			case "detail":
				if n, ok := parsePercent(value); ok {
					opts.Enhance.Detail = n
					continue
				}
			case "light":
				if n, ok := parsePercent(value); ok {
					opts.Enhance.Light = n
					continue
				}
			case "ar", "aspect":
				if r, ok := aspect.Parse(value); ok {
					opts.AspectRatio = r
					continue
				}
			}
		}

		if r, ok := aspect.Parse(tok); ok {
			opts.AspectRatio = r
			continue
		}

		notes = append(notes, orig)
	}

	if len(notes) > 0 {
		opts.Notes = strings.TrimSpace(strings.Join(notes, " "))
	}
	return opts
}

func parsePercent(value string) (int, bool) {
	value = strings.TrimSuffix(strings.TrimSpace(value), "%")
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, false
	}
	return n, true
}
