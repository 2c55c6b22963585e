package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"curseforge-mod-fetcher/curseforge"
	"curseforge-mod-fetcher/ledger"
	"curseforge-mod-fetcher/metrics"

	"go.uber.org/zap"
)

const (
	DefaultMaxRedirects = 5
	DefaultIdleTimeout  = 60 * time.Second
)

var errIdleTimeout = errors.New("no data received within idle timeout")

// Resolver looks up a mod and the direct URL of one of its files.
// *curseforge.Catalog satisfies it.
type Resolver interface {
	GetMod(ctx context.Context, modID int) (*curseforge.Mod, error)
	GetDownloadURL(ctx context.Context, modID, fileID int) (string, error)
}

// Recorder stores the record of a finished download. *ledger.Ledger
// satisfies it.
type Recorder interface {
	Upsert(rec ledger.Record) error
}

// Manager downloads the latest file of a mod into the mods directory.
// Download is safe for concurrent use.
type Manager struct {
	resolver     Resolver
	recorder     Recorder
	modsDir      string
	httpClient   *http.Client
	userAgent    string
	maxRedirects int
	idleTimeout  time.Duration
	onProgress   func(Progress)
	log          *zap.SugaredLogger
	metrics      *metrics.Metrics
	now          func() time.Time
}

// Option configures a Manager during construction.
type Option func(*Manager)

// WithHTTPClient sets the client used for file transfers. Redirects are
// always handled by the Manager, whatever the client's CheckRedirect says.
func WithHTTPClient(hc *http.Client) Option {
	return func(m *Manager) {
		if hc != nil {
			m.httpClient = hc
		}
	}
}

func WithUserAgent(ua string) Option {
	return func(m *Manager) {
		if ua != "" {
			m.userAgent = ua
		}
	}
}

// WithMaxRedirects bounds the number of redirects followed per transfer.
func WithMaxRedirects(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.maxRedirects = n
		}
	}
}

// WithIdleTimeout aborts a transfer that receives no bytes for d.
func WithIdleTimeout(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.idleTimeout = d
		}
	}
}

// WithProgress registers a callback for transfer progress. It is invoked on
// the downloading goroutine.
func WithProgress(fn func(Progress)) Option {
	return func(m *Manager) {
		m.onProgress = fn
	}
}

func WithLogger(log *zap.SugaredLogger) Option {
	return func(m *Manager) {
		if log != nil {
			m.log = log
		}
	}
}

func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Manager) {
		m.metrics = mt
	}
}

// WithClock sets the source of DownloadDate on records.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

func NewManager(resolver Resolver, recorder Recorder, modsDir string, opts ...Option) *Manager {
	m := &Manager{
		resolver:     resolver,
		recorder:     recorder,
		modsDir:      modsDir,
		httpClient:   &http.Client{},
		userAgent:    "curseforge-mod-fetcher/dev",
		maxRedirects: DefaultMaxRedirects,
		idleTimeout:  DefaultIdleTimeout,
		log:          zap.NewNop().Sugar(),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}

	hc := *m.httpClient
	hc.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}
	m.httpClient = &hc
	return m
}

// Download resolves the latest file of modID, streams it into the mods
// directory and records it. The final path is written only by an atomic
// rename after every check passed; nothing is recorded on failure. Errors
// are *PhaseError wrapping the stage-specific error.
func (m *Manager) Download(ctx context.Context, modID int) (ledger.Record, error) {
	start := time.Now()
	log := m.log.With(zap.Int("mod_id", modID))

	rec, phase, err := m.download(ctx, log, modID)
	elapsed := time.Since(start)
	if err != nil {
		m.metrics.ObserveDownload("failed", 0, elapsed.Seconds())
		log.Errorw("Download failed", zap.String("phase", string(phase)), zap.Error(err))
		return ledger.Record{}, &PhaseError{ModID: modID, Phase: phase, Err: err}
	}

	m.metrics.ObserveDownload("success", rec.FileSize, elapsed.Seconds())
	log.Infow("Download completed",
		zap.String("file", rec.FileName),
		zap.Int64("bytes", rec.FileSize),
		zap.Duration("elapsed", elapsed))
	return rec, nil
}

func (m *Manager) download(ctx context.Context, log *zap.SugaredLogger, modID int) (ledger.Record, Phase, error) {
	log.Debugw("Download phase", zap.String("phase", string(PhaseResolving)))
	mod, file, rawURL, err := m.resolve(ctx, modID)
	if err != nil {
		return ledger.Record{}, PhaseResolving, err
	}

	finalPath, err := m.destination(file.FileName)
	if err != nil {
		return ledger.Record{}, PhaseFinalizing, err
	}

	log.Debugw("Download phase", zap.String("phase", string(PhaseTransferring)), zap.String("file", file.FileName))
	written, pw, phase, err := m.transfer(ctx, modID, file, rawURL, finalPath)
	if err != nil {
		return ledger.Record{}, phase, err
	}

	rec := ledger.Record{
		ModID:        mod.ID,
		ModName:      mod.Name,
		FileID:       file.ID,
		FileName:     file.FileName,
		FilePath:     finalPath,
		DownloadDate: m.now(),
		FileSize:     written,
		GameVersions: file.GameVersions,
	}
	if rec.ModID == 0 {
		rec.ModID = modID
	}
	if m.recorder != nil {
		if err := m.recorder.Upsert(rec); err != nil {
			return ledger.Record{}, PhaseRecording, err
		}
	}

	pw.finish()
	return rec, PhaseCompleted, nil
}

func (m *Manager) resolve(ctx context.Context, modID int) (*curseforge.Mod, curseforge.File, string, error) {
	mod, err := m.resolver.GetMod(ctx, modID)
	if err != nil {
		return nil, curseforge.File{}, "", err
	}
	file, ok := mod.LatestFile()
	if !ok {
		return nil, curseforge.File{}, "", &NoFilesAvailableError{ModID: modID}
	}

	rawURL, err := m.resolver.GetDownloadURL(ctx, modID, file.ID)
	if err != nil {
		return nil, curseforge.File{}, "", &ResolutionError{ModID: modID, FileID: file.ID, Err: err}
	}
	if strings.TrimSpace(rawURL) == "" {
		return nil, curseforge.File{}, "", &ResolutionError{ModID: modID, FileID: file.ID}
	}
	return mod, file, rawURL, nil
}

// destination maps a catalog file name to a path inside the mods directory.
// Only bare names are accepted.
func (m *Manager) destination(fileName string) (string, error) {
	if fileName == "" || fileName == "." || fileName == ".." ||
		strings.ContainsAny(fileName, `/\`) || filepath.Base(fileName) != fileName {
		return "", &FileSystemError{Op: "validate", Path: fileName, Err: errors.New("file name is not a bare name")}
	}
	return filepath.Join(m.modsDir, fileName), nil
}

// transfer streams rawURL into a temp file beside finalPath and renames it into
// place once the stream is complete and verified.
func (m *Manager) transfer(ctx context.Context, modID int, file curseforge.File, rawURL, finalPath string) (int64, *progressWriter, Phase, error) {
	if err := os.MkdirAll(m.modsDir, 0755); err != nil {
		return 0, nil, PhaseFinalizing, &FileSystemError{Op: "mkdir", Path: m.modsDir, Err: err}
	}

	tmp, err := os.CreateTemp(m.modsDir, "."+file.FileName+".*.part")
	if err != nil {
		return 0, nil, PhaseFinalizing, &FileSystemError{Op: "create", Path: m.modsDir, Err: err}
	}
	tmpPath := tmp.Name()
	renamed := false
	defer func() {
		if !renamed {
			_ = tmp.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	tctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)
	activity := make(chan struct{}, 1)
	go watchIdle(tctx, cancel, m.idleTimeout, activity)

	resp, finalURL, err := m.open(tctx, rawURL)
	if err != nil {
		return 0, nil, PhaseTransferring, interrupted(ctx, tctx, err, rawURL)
	}
	defer resp.Body.Close()

	hasher := newSHA1()
	pw := newProgressWriter(io.MultiWriter(tmp, hasher), modID, file.FileName, resp.ContentLength, m.onProgress, activity)
	if _, err := io.Copy(pw, resp.Body); err != nil {
		if pw.writeErr != nil {
			return 0, nil, PhaseFinalizing, &FileSystemError{Op: "write", Path: tmpPath, Err: pw.writeErr}
		}
		return 0, nil, PhaseTransferring, interrupted(ctx, tctx, &DownloadError{URL: finalURL, Err: networkError(finalURL, err)}, finalURL)
	}
	cancel(nil)

	written := pw.written()
	if file.FileLength > 0 && written < file.FileLength {
		return 0, nil, PhaseTransferring, &ShortTransferError{Expected: file.FileLength, Written: written}
	}
	if file.FileLength > 0 && written > file.FileLength {
		m.log.Warnw("Transfer larger than declared file length",
			zap.Int("mod_id", modID),
			zap.Int64("declared", file.FileLength),
			zap.Int64("written", written))
	}
	if sum, ok := file.SHA1(); ok {
		if err := verifySHA1(sum, hasher); err != nil {
			return 0, nil, PhaseFinalizing, err
		}
	}

	if err := tmp.Sync(); err != nil {
		return 0, nil, PhaseFinalizing, &FileSystemError{Op: "sync", Path: tmpPath, Err: err}
	}
	if err := tmp.Close(); err != nil {
		return 0, nil, PhaseFinalizing, &FileSystemError{Op: "close", Path: tmpPath, Err: err}
	}
	if err := os.Chmod(tmpPath, 0644); err != nil {
		return 0, nil, PhaseFinalizing, &FileSystemError{Op: "chmod", Path: tmpPath, Err: err}
	}
	if err := os.Rename(tmpPath, finalPath); err != nil {
		return 0, nil, PhaseFinalizing, &FileSystemError{Op: "rename", Path: finalPath, Err: err}
	}
	renamed = true
	return written, pw, PhaseFinalizing, nil
}

// open requests rawURL and follows redirects itself, resolving each Location
// against the URL that returned it. It returns the 200 response and its URL.
func (m *Manager) open(ctx context.Context, rawURL string) (*http.Response, string, error) {
	current := rawURL
	for hops := 0; ; hops++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, current, nil)
		if err != nil {
			return nil, current, &DownloadError{URL: current, Err: err}
		}
		req.Header.Set("User-Agent", m.userAgent)

		resp, err := m.httpClient.Do(req)
		if err != nil {
			return nil, current, &DownloadError{URL: current, Err: networkError(current, err)}
		}

		switch resp.StatusCode {
		case http.StatusOK:
			return resp, current, nil
		case http.StatusMovedPermanently, http.StatusFound, http.StatusSeeOther,
			http.StatusTemporaryRedirect, http.StatusPermanentRedirect:
			location := resp.Header.Get("Location")
			drainAndClose(resp)
			if location == "" {
				return nil, current, &DownloadError{StatusCode: resp.StatusCode, URL: current, Err: errors.New("redirect without Location header")}
			}
			if hops >= m.maxRedirects {
				return nil, current, &RedirectLoopError{Limit: m.maxRedirects, URL: rawURL}
			}
			next, err := resolveLocation(current, location)
			if err != nil {
				return nil, current, &DownloadError{StatusCode: resp.StatusCode, URL: current, Err: err}
			}
			m.log.Debugw("Following redirect", zap.Int("status", resp.StatusCode), zap.String("location", next))
			current = next
		default:
			drainAndClose(resp)
			return nil, current, &DownloadError{StatusCode: resp.StatusCode, URL: current}
		}
	}
}

func resolveLocation(base, location string) (string, error) {
	baseURL, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parsing url %q: %w", base, err)
	}
	ref, err := url.Parse(location)
	if err != nil {
		return "", fmt.Errorf("parsing redirect location %q: %w", location, err)
	}
	return baseURL.ResolveReference(ref).String(), nil
}

func drainAndClose(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	_ = resp.Body.Close()
}

func networkError(rawURL string, err error) *curseforge.NetworkError {
	var netErr net.Error
	timeout := errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout())
	return &curseforge.NetworkError{URL: rawURL, Err: err, Timeout: timeout}
}

// interrupted replaces a transfer error with the reason the transfer context
// ended, if it did: the idle watchdog or the caller's cancellation.
func interrupted(parent, tctx context.Context, err error, rawURL string) error {
	if errors.Is(context.Cause(tctx), errIdleTimeout) {
		return &DownloadError{URL: rawURL, Err: &curseforge.NetworkError{URL: rawURL, Err: errIdleTimeout, Timeout: true}}
	}
	if parentErr := parent.Err(); parentErr != nil {
		return &DownloadError{URL: rawURL, Err: parentErr}
	}
	return err
}

// watchIdle cancels ctx with errIdleTimeout when nothing arrives on activity
// for idle. It returns when ctx is done.
func watchIdle(ctx context.Context, cancel context.CancelCauseFunc, idle time.Duration, activity <-chan struct{}) {
	timer := time.NewTimer(idle)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-activity:
			timer.Reset(idle)
		case <-timer.C:
			cancel(errIdleTimeout)
			return
		}
	}
}
