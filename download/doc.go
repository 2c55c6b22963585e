// Package download fetches the latest file of a CurseForge mod into a local
// mods directory.
//
// # Manager
//
// A Manager runs each download through four phases:
//
//  1. Resolving: look up the mod, take latestFiles[0], ask for its direct URL
//  2. Transferring: GET the URL, following at most MaxRedirects redirects
//  3. Finalizing: verify length and SHA-1, then rename the temp file into place
//  4. Recording: upsert a ledger.Record
//
// A failure in any phase is returned as a *PhaseError wrapping the
// stage-specific error, so callers can use errors.As for either.
//
// # Basic Usage
//
//	mgr := download.NewManager(catalog, ledger.New("downloaded-mods.json"), "mods",
//	    download.WithProgress(func(p download.Progress) {
//	        fmt.Printf("%s %d%%\n", p.FileName, p.Percent)
//	    }),
//	)
//	rec, err := mgr.Download(ctx, 238222)
//
// # Atomic Placement
//
// Bytes stream into a hidden ".<name>.*.part" file in the mods directory. The
// temp file is removed on every failure path, including context cancellation,
// so the final path is either absent, unchanged, or the complete new file.
//
// # Stalled Transfers
//
// A watchdog cancels the transfer when no bytes arrive for the idle timeout
// (60 seconds by default). The result is a *DownloadError wrapping a
// *curseforge.NetworkError with Timeout set.
package download
