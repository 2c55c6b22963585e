package curseforge

import (
	"slices"
	"time"
)

// CurseForge API v1 wire types. Only the fields the fetcher reads are decoded.

// envelope wraps every CurseForge response body. Data is a pointer-able
// payload so a missing or null "data" can be told apart from a zero value.
type envelope[T any] struct {
	Data       T           `json:"data"`
	Pagination *Pagination `json:"pagination,omitempty"`
}

// Pagination describes the page returned by a search.
type Pagination struct {
	Index       int `json:"index"`
	PageSize    int `json:"pageSize"`
	ResultCount int `json:"resultCount"`
	TotalCount  int `json:"totalCount"`
}

// Mod is a catalog entry. LatestFiles keeps the catalog's ordering; its first
// element is the canonical latest file.
type Mod struct {
	ID            int        `json:"id"`
	GameID        int        `json:"gameId"`
	Slug          string     `json:"slug"`
	Name          string     `json:"name"`
	Summary       string     `json:"summary"`
	Authors       []Author   `json:"authors"`
	Categories    []Category `json:"categories"`
	DownloadCount int64      `json:"downloadCount"`
	IsFeatured    bool       `json:"isFeatured"`
	DateCreated   time.Time  `json:"dateCreated"`
	DateModified  time.Time  `json:"dateModified"`
	Links         ModLinks   `json:"links"`
	LatestFiles   []File     `json:"latestFiles"`
}

// LatestFile returns latestFiles[0] as ordered by the catalog.
func (m Mod) LatestFile() (File, bool) {
	if len(m.LatestFiles) == 0 {
		return File{}, false
	}
	return m.LatestFiles[0], true
}

// clone copies m so that changes to the copy's slices never reach m.
func (m Mod) clone() Mod {
	m.Authors = slices.Clone(m.Authors)
	m.Categories = slices.Clone(m.Categories)
	files := make([]File, len(m.LatestFiles))
	for i, f := range m.LatestFiles {
		f.GameVersions = slices.Clone(f.GameVersions)
		f.Hashes = slices.Clone(f.Hashes)
		files[i] = f
	}
	if m.LatestFiles == nil {
		files = nil
	}
	m.LatestFiles = files
	return m
}

type Author struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
	URL  string `json:"url"`
}

type Category struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

// ModLinks holds the optional project URLs; empty strings mean unset.
type ModLinks struct {
	WebsiteURL string `json:"websiteUrl"`
	WikiURL    string `json:"wikiUrl"`
	IssuesURL  string `json:"issuesUrl"`
	SourceURL  string `json:"sourceUrl"`
}

// File is a downloadable artifact of a mod.
type File struct {
	ID            int        `json:"id"`
	ModID         int        `json:"modId"`
	DisplayName   string     `json:"displayName"`
	FileName      string     `json:"fileName"`
	FileLength    int64      `json:"fileLength"`
	DownloadCount int64      `json:"downloadCount"`
	GameVersions  []string   `json:"gameVersions"`
	FileDate      time.Time  `json:"fileDate"`
	ReleaseType   int        `json:"releaseType"`
	Hashes        []FileHash `json:"hashes"`
}

// HashAlgo identifies the digest in a FileHash.
type HashAlgo int

const (
	HashSHA1 HashAlgo = 1
	HashMD5  HashAlgo = 2
)

type FileHash struct {
	Value string   `json:"value"`
	Algo  HashAlgo `json:"algo"`
}

// SHA1 returns the declared SHA-1 digest, if the catalog provided one.
func (f File) SHA1() (string, bool) {
	for _, h := range f.Hashes {
		if h.Algo == HashSHA1 && h.Value != "" {
			return h.Value, true
		}
	}
	return "", false
}

// SearchResult is one page of a catalog search. Mods is never nil.
type SearchResult struct {
	Mods       []Mod
	Pagination Pagination
}

// ModLoaderType is the catalog's loader taxonomy. ModLoaderAny (0) means
// unspecified and is never sent.
type ModLoaderType int

const (
	ModLoaderAny ModLoaderType = iota
	ModLoaderForge
	ModLoaderCauldron
	ModLoaderLiteLoader
	ModLoaderFabric
	ModLoaderQuilt
	ModLoaderNeoForge
)

var modLoaderNames = map[ModLoaderType]string{
	ModLoaderAny:        "any",
	ModLoaderForge:      "forge",
	ModLoaderCauldron:   "cauldron",
	ModLoaderLiteLoader: "liteloader",
	ModLoaderFabric:     "fabric",
	ModLoaderQuilt:      "quilt",
	ModLoaderNeoForge:   "neoforge",
}

func (t ModLoaderType) String() string {
	if name, ok := modLoaderNames[t]; ok {
		return name
	}
	return "unknown"
}

// SortField selects the search ordering.
type SortField int

const (
	SortFeatured SortField = iota + 1
	SortPopularity
	SortLastUpdated
	SortName
	SortAuthor
	SortTotalDownloads
)

type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// SearchFilter describes one catalog query. Zero values of the optional
// fields mean "not set" and are omitted from the request.
type SearchFilter struct {
	SearchText    string
	CategoryID    int
	ModLoaderType ModLoaderType
	GameVersion   string
	SortField     SortField
	SortOrder     SortOrder
	PageSize      int
	Index         int
}

// DefaultSearchFilter returns a popularity-descending filter of 20 results.
func DefaultSearchFilter() SearchFilter {
	return SearchFilter{
		SortField: SortPopularity,
		SortOrder: SortDesc,
		PageSize:  20,
	}
}
