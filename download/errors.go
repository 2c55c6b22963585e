package download

import (
	"fmt"
)

// Phase is a step of a single download.
type Phase string

const (
	PhaseResolving    Phase = "resolving"
	PhaseTransferring Phase = "transferring"
	PhaseFinalizing   Phase = "finalizing"
	PhaseRecording    Phase = "recording"
	PhaseCompleted    Phase = "completed"
)

type (
	// PhaseError wraps the stage-specific error of a failed download with the
	// phase it failed in and the mod it was for.
	PhaseError struct {
		ModID int
		Phase Phase
		Err   error
	}

	// NoFilesAvailableError means the mod lists no latest files.
	NoFilesAvailableError struct {
		ModID int
	}

	// ResolutionError means no direct download URL could be obtained.
	ResolutionError struct {
		ModID  int
		FileID int
		Err    error
	}

	// RedirectLoopError means the transfer was redirected more than Limit
	// times.
	RedirectLoopError struct {
		Limit int
		URL   string
	}

	// DownloadError is a failed file transfer. StatusCode is zero when the
	// server was never reached or the stream broke mid-transfer.
	DownloadError struct {
		StatusCode int
		URL        string
		Err        error
	}

	// FileSystemError is a local directory or file operation that failed.
	FileSystemError struct {
		Op   string
		Path string
		Err  error
	}

	// ShortTransferError means fewer bytes arrived than the catalog declared.
	ShortTransferError struct {
		Expected int64
		Written  int64
	}

	// ChecksumError means the transferred bytes do not match the declared SHA-1.
	ChecksumError struct {
		Expected string
		Actual   string
	}
)

func (e *PhaseError) Error() string {
	return fmt.Sprintf("download of mod %d failed while %s: %v", e.ModID, e.Phase, e.Err)
}

func (e *PhaseError) Unwrap() error { return e.Err }

func (e *NoFilesAvailableError) Error() string {
	return fmt.Sprintf("mod %d has no files available", e.ModID)
}

func (e *ResolutionError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("no download url for mod %d file %d", e.ModID, e.FileID)
	}
	return fmt.Sprintf("resolving download url for mod %d file %d: %v", e.ModID, e.FileID, e.Err)
}

func (e *ResolutionError) Unwrap() error { return e.Err }

func (e *RedirectLoopError) Error() string {
	return fmt.Sprintf("too many redirects (more than %d) fetching %s", e.Limit, e.URL)
}

func (e *DownloadError) Error() string {
	switch {
	case e.StatusCode != 0 && e.Err != nil:
		return fmt.Sprintf("download failed: status %d from %s: %v", e.StatusCode, e.URL, e.Err)
	case e.StatusCode != 0:
		return fmt.Sprintf("download failed: status %d from %s", e.StatusCode, e.URL)
	default:
		return fmt.Sprintf("download failed from %s: %v", e.URL, e.Err)
	}
}

func (e *DownloadError) Unwrap() error { return e.Err }

func (e *FileSystemError) Error() string {
	return fmt.Sprintf("file system error: %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *FileSystemError) Unwrap() error { return e.Err }

func (e *ShortTransferError) Error() string {
	return fmt.Sprintf("transfer ended early: got %d of %d bytes", e.Written, e.Expected)
}

func (e *ChecksumError) Error() string {
	return fmt.Sprintf("sha1 mismatch: expected %s, got %s", e.Expected, e.Actual)
}
