package cmd

import (
	"context"
	"errors"
	"fmt"

	"curseforge-mod-fetcher/config"
	"curseforge-mod-fetcher/curseforge"
	"curseforge-mod-fetcher/download"
	"curseforge-mod-fetcher/ledger"
	"curseforge-mod-fetcher/ui"
)

// errorKind tells the user what to do about an error.
type errorKind string

const (
	kindConfiguration errorKind = "configuration"
	kindTransient     errorKind = "transient"
	kindCatalog       errorKind = "catalog data"
	kindLocal         errorKind = "local"
	kindCancelled     errorKind = "cancelled"
	kindOther         errorKind = "error"
)

var kindHints = map[errorKind]string{
	kindConfiguration: "check CURSEFORGE_API_KEY and the other settings",
	kindTransient:     "the network or CurseForge had a problem, retry later",
	kindCatalog:       "the mod or file does not exist or cannot be downloaded",
	kindLocal:         "check the mods directory and ledger file permissions",
	kindCancelled:     "interrupted",
}

func classify(err error) errorKind {
	var (
		cfgErr      *config.ConfigurationError
		statusErr   *curseforge.HTTPStatusError
		noFiles     *download.NoFilesAvailableError
		resErr      *download.ResolutionError
		fsErr       *download.FileSystemError
		ledgerErr   *ledger.WriteError
		dlErr       *download.DownloadError
		loopErr     *download.RedirectLoopError
		shortErr    *download.ShortTransferError
		checksumErr *download.ChecksumError
	)
	switch {
	case errors.As(err, &cfgErr):
		return kindConfiguration
	case errors.Is(err, context.Canceled):
		return kindCancelled
	case errors.Is(err, curseforge.ErrNotFound), errors.As(err, &noFiles):
		return kindCatalog
	case errors.As(err, &statusErr):
		if statusErr.StatusCode == 401 || statusErr.StatusCode == 403 {
			return kindConfiguration
		}
		if curseforge.IsTransient(err) {
			return kindTransient
		}
		return kindCatalog
	case errors.As(err, &resErr):
		if curseforge.IsTransient(err) {
			return kindTransient
		}
		return kindCatalog
	case errors.As(err, &fsErr), errors.As(err, &ledgerErr):
		return kindLocal
	case curseforge.IsTransient(err), errors.As(err, &dlErr), errors.As(err, &loopErr),
		errors.As(err, &shortErr), errors.As(err, &checksumErr):
		return kindTransient
	}
	return kindOther
}

func formatError(err error) string {
	kind := classify(err)
	msg := fmt.Sprintf("%s: %v", ui.Failure.Render(string(kind)), err)
	if hint, ok := kindHints[kind]; ok {
		msg += "\n" + ui.Muted.Render("  "+hint)
	}
	return msg
}

func exitCode(err error) int {
	switch classify(err) {
	case kindConfiguration:
		return 2
	case kindCancelled:
		return 130
	default:
		return 1
	}
}
