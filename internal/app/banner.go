package app

import (
	"fmt"
	"io"
	"os"
	"strings"

	"chassis/internal/buildinfo"
	"chassis/internal/config"
)

const bannerWidth = 62

// printBanner writes the startup summary box. Purely cosmetic: it reads
// configuration and build metadata, never the infra layer.
func printBanner(w io.Writer, cfg *config.Config, info buildinfo.Info) {
	top := "╔" + strings.Repeat("═", bannerWidth) + "╗"
	div := "╠" + strings.Repeat("═", bannerWidth) + "╣"
	bottom := "╚" + strings.Repeat("═", bannerWidth) + "╝"

	fmt.Fprintln(w)
	fmt.Fprintln(w, top)
	bannerRow(w, "", centerText(info.Name, bannerWidth-4))
	fmt.Fprintln(w, div)
	bannerRow(w, "Version", fmt.Sprintf("%s (%s)", info.Version, info.ShortCommit()))
	bannerRow(w, "Go", info.GoVersion)

	fmt.Fprintln(w, div)
	bannerRow(w, "", "ENVIRONMENT")
	fmt.Fprintln(w, div)
	bannerRow(w, "Env", envBadge(cfg.App.Env))
	bannerRow(w, "Address", cfg.App.ListenAddr())

	fmt.Fprintln(w, div)
	bannerRow(w, "", "FEATURES")
	fmt.Fprintln(w, div)
	bannerRow(w, "Database", onOff(cfg.Features.DB))
	cacheStatus := onOff(cfg.Features.Cache)
	if cfg.Features.Cache {
		cacheStatus = fmt.Sprintf("✅ ON (%s)", cfg.Cache.Backend)
	}
	bannerRow(w, "Cache", cacheStatus)
	bannerRow(w, "Search", onOff(cfg.Features.Search))
	bannerRow(w, "Broker", onOff(cfg.Features.Broker))
	bannerRow(w, "OTel", onOff(cfg.Features.OTel))

	fmt.Fprintln(w, div)
	bannerRow(w, "", "HTTP")
	fmt.Fprintln(w, div)
	bannerRow(w, "Request Log", onOff(cfg.Features.RequestLog))
	bannerRow(w, "Tracing", onOff(cfg.Features.Tracing))
	bannerRow(w, "CORS", onOff(cfg.Features.CORS))
	bannerRow(w, "Body Limit", formatBytes(cfg.HTTP.BodyLimitBytes))
	bannerRow(w, "Timeout", fmt.Sprintf("%ds", cfg.HTTP.RequestTimeoutSeconds))

	if cfg.Banner.ShowEnvVars && len(cfg.Banner.EnvAllowlist) > 0 {
		fmt.Fprintln(w, div)
		bannerRow(w, "", "ENVIRONMENT VARIABLES")
		fmt.Fprintln(w, div)
		for _, key := range cfg.Banner.EnvAllowlist {
			value, ok := os.LookupEnv(key)
			if !ok {
				continue
			}
			if !cfg.Banner.ShowSecrets {
				value = config.RedactSecret(value)
			}
			bannerRow(w, key, value)
		}
	}

	fmt.Fprintln(w, bottom)
	fmt.Fprintln(w)
}

// bannerRow prints one box row. With an empty label the value spans the
// row (used for section headings).
func bannerRow(w io.Writer, label, value string) {
	var content string
	if label == "" {
		content = value
	} else {
		content = fmt.Sprintf("%-12s %s", label+":", value)
	}
	if len(content) > bannerWidth-4 {
		content = content[:bannerWidth-4]
	}
	fmt.Fprintf(w, "║  %-*s║\n", bannerWidth-2, content)
}

func centerText(s string, width int) string {
	if len(s) >= width {
		return s
	}
	pad := (width - len(s)) / 2
	return strings.Repeat(" ", pad) + s
}

func envBadge(env string) string {
	switch env {
	case "prod":
		return "🚀 PROD"
	case "stage":
		return "🚧 STAGE"
	default:
		return "🔧 DEV"
	}
}

func onOff(enabled bool) string {
	if enabled {
		return "✅ ON"
	}
	return "❌ OFF"
}

func formatBytes(n int64) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%d MB", n/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%d KB", n/(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}
