// Package storage keeps the append-only record of persisted postings. The
// JSON record list is the source of truth; the CSV log, identity index and
// analytics are derived from it and repaired on open.
package storage

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/ml-job-radar/internal/jobs"
	"github.com/spigell/ml-job-radar/internal/logger"
	"github.com/spigell/ml-job-radar/internal/utils"
)

const (
	RecordsFile   = "jobs.json"
	CSVFile       = "jobs.csv"
	IndexFile     = "job_index.json"
	AnalyticsFile = "analytics.json"

	schemaVersion = "2.0"
	statusNew     = "New"
	topSkills     = 10
	exportSkills  = 5
)

// CSVHeader is the fixed column order of the tabular log.
var CSVHeader = []string{
	"Date", "Job Title", "Company", "Location", "Link", "Source",
	"Relevance Score", "Match Score", "Combined Score", "Status",
	"Matching Skills", "Missing Skills", "Salary", "Job Type",
}

type records struct {
	Jobs     []jobs.Posting `json:"jobs"`
	Metadata metadata       `json:"metadata"`
}

type metadata struct {
	Created     string `json:"created"`
	LastUpdated string `json:"last_updated,omitempty"`
	TotalJobs   int    `json:"total_jobs"`
	Version     string `json:"version"`
}

type index struct {
	Index   map[jobs.IdentityKey]string `json:"index"`
	Updated string                      `json:"updated,omitempty"`
}

// Analytics holds the aggregate counters kept next to the records.
type Analytics struct {
	DailyStats     map[string]DailyStat `json:"daily_stats"`
	SourceStats    map[string]int       `json:"source_stats"`
	SkillFrequency map[string]int       `json:"skill_frequency"`
}

type DailyStat struct {
	Count    int     `json:"count"`
	AvgScore float64 `json:"avg_score"`
}

// Stats is the snapshot reported by GetStats.
type Stats struct {
	TotalJobs         int            `json:"total_jobs"`
	CSVFile           string         `json:"csv_file"`
	JSONFile          string         `json:"json_file"`
	Sources           map[string]int `json:"sources"`
	AvgRelevanceScore float64        `json:"avg_relevance_score"`
	AvgMatchScore     float64        `json:"avg_match_score"`
	TopSkills         []string       `json:"top_skills"`
}

// Sink receives every posting after it was durably appended.
type Sink interface {
	Name() string
	Write(ctx context.Context, p jobs.Posting) error
	Close() error
}

// FileStore is safe for use by one process. Every update holds the mutex
// for the whole write sequence.
type FileStore struct {
	dir    string
	logger *zap.Logger
	now    func() time.Time
	sinks  []Sink

	mu        sync.Mutex
	records   records
	index     map[jobs.IdentityKey]string
	analytics Analytics
}

type Option func(*FileStore)

// WithSinks forwards appended postings to the given sinks.
func WithSinks(sinks ...Sink) Option {
	return func(s *FileStore) { s.sinks = append(s.sinks, sinks...) }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *FileStore) { s.now = now }
}

// Open loads the store in dir, creating missing files and repairing derived
// files that disagree with the record list.
func Open(dir string, log *zap.Logger, opts ...Option) (*FileStore, error) {
	s := &FileStore{
		dir:    dir,
		logger: logger.OrNop(log),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	if err := s.reconcile(); err != nil {
		return nil, err
	}

	s.logger.Info("storage initialized",
		zap.String("dir", dir),
		zap.Int("jobs", len(s.records.Jobs)),
	)
	return s, nil
}

func (s *FileStore) path(name string) string {
	return filepath.Join(s.dir, name)
}

func (s *FileStore) load() error {
	ok, err := readJSON(s.path(RecordsFile), &s.records)
	if err != nil {
		return fmt.Errorf("read %s: %w", RecordsFile, err)
	}
	if !ok {
		s.records = records{Metadata: metadata{Created: s.timestamp(), Version: schemaVersion}}
		if err := writeJSON(s.path(RecordsFile), s.records); err != nil {
			return err
		}
	}

	var idx index
	if _, err := readJSON(s.path(IndexFile), &idx); err != nil {
		s.logger.Warn("index unreadable, rebuilding", zap.Error(err))
	}
	s.index = idx.Index

	if _, err := readJSON(s.path(AnalyticsFile), &s.analytics); err != nil {
		s.logger.Warn("analytics unreadable, rebuilding", zap.Error(err))
		s.analytics = Analytics{}
	}
	return nil
}

// reconcile rewrites the derived files from the record list when they do not
// match it, e.g. after an interrupted append.
func (s *FileStore) reconcile() error {
	want := make(map[jobs.IdentityKey]string, len(s.records.Jobs))
	for i := range s.records.Jobs {
		p := &s.records.Jobs[i]
		if _, ok := want[p.Key()]; !ok {
			want[p.Key()] = firstSeen(s.index, p)
		}
	}

	if !sameKeys(s.index, want) {
		s.logger.Info("repairing identity index", zap.Int("indexed", len(s.index)), zap.Int("records", len(want)))
		s.index = want
		if err := s.saveIndex(); err != nil {
			return err
		}
	}
	if s.index == nil {
		s.index = want
	}
	if _, err := os.Stat(s.path(IndexFile)); errors.Is(err, os.ErrNotExist) {
		if err := s.saveIndex(); err != nil {
			return err
		}
	}

	if analyticsTotal(s.analytics) != len(s.records.Jobs) {
		s.logger.Info("rebuilding analytics")
		s.analytics = Analytics{}
		for _, p := range s.records.Jobs {
			s.analytics.add(p, day(p.AddedAt))
		}
		if err := writeJSON(s.path(AnalyticsFile), s.analytics); err != nil {
			return err
		}
	}
	if _, err := os.Stat(s.path(AnalyticsFile)); errors.Is(err, os.ErrNotExist) {
		if err := writeJSON(s.path(AnalyticsFile), s.analytics.orEmpty()); err != nil {
			return err
		}
	}

	rows, err := countCSVRows(s.path(CSVFile))
	if err != nil || rows != len(s.records.Jobs) {
		s.logger.Info("rewriting csv log", zap.Int("rows", rows), zap.Int("records", len(s.records.Jobs)))
		if err := s.writeCSV(s.path(CSVFile), false); err != nil {
			return err
		}
	}
	return nil
}

// Exists reports whether the identity of (title, company) was ever stored.
func (s *FileStore) Exists(title, company string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.index[jobs.Key(title, company)]
	return ok
}

// Append records p unless its identity is already stored. The record list is
// written first, the derived files after it.
func (s *FileStore) Append(ctx context.Context, p jobs.Posting) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := p.Key()
	if _, ok := s.index[key]; ok {
		return false, nil
	}

	now := s.now()
	p.AddedAt = now.Format(time.RFC3339)

	next := s.records
	next.Jobs = append(append([]jobs.Posting(nil), s.records.Jobs...), p)
	next.Metadata.TotalJobs = len(next.Jobs)
	next.Metadata.LastUpdated = p.AddedAt
	if next.Metadata.Version == "" {
		next.Metadata.Version = schemaVersion
	}
	if err := writeJSON(s.path(RecordsFile), next); err != nil {
		return false, err
	}
	s.records = next
	s.index[key] = p.AddedAt
	s.analytics.add(p, now.Format(jobs.DateLayout))

	var errs []error
	if err := s.appendCSV(p); err != nil {
		errs = append(errs, err)
	}
	if err := s.saveIndex(); err != nil {
		errs = append(errs, err)
	}
	if err := writeJSON(s.path(AnalyticsFile), s.analytics); err != nil {
		errs = append(errs, err)
	}
	if err := errors.Join(errs...); err != nil {
		s.logger.Warn("derived files out of date, they are repaired on next open", zap.Error(err))
	}

	for _, sink := range s.sinks {
		if err := sink.Write(ctx, p); err != nil {
			s.logger.Warn("sink write failed", zap.String("sink", sink.Name()), zap.Error(err))
		}
	}

	return true, nil
}

// GetExistingIdentities returns the normalized (title, company) pairs of the index.
func (s *FileStore) GetExistingIdentities() ([]jobs.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]jobs.Identity, 0, len(s.index))
	for key := range s.index {
		title, company := key.Split()
		out = append(out, jobs.Identity{Title: title, Company: company})
	}
	s.logger.Debug("retrieved existing identities", zap.Int("count", len(out)))
	return out, nil
}

// All returns a copy of every persisted posting in append order.
func (s *FileStore) All() []jobs.Posting {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]jobs.Posting(nil), s.records.Jobs...)
}

// Count returns the number of persisted postings.
func (s *FileStore) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records.Jobs)
}

// GetStats scans the record list.
func (s *FileStore) GetStats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := Stats{
		TotalJobs: len(s.records.Jobs),
		CSVFile:   s.path(CSVFile),
		JSONFile:  s.path(RecordsFile),
		Sources:   make(map[string]int),
		TopSkills: []string{},
	}

	var relevance, match []int
	for _, p := range s.records.Jobs {
		stats.Sources[sourceOf(p)]++
		if p.RelevanceScore > 0 {
			relevance = append(relevance, p.RelevanceScore)
		}
		if p.MatchScore > 0 {
			match = append(match, p.MatchScore)
		}
	}
	stats.AvgRelevanceScore = average(relevance)
	stats.AvgMatchScore = average(match)

	skills := make([]string, 0, len(s.analytics.SkillFrequency))
	for skill := range s.analytics.SkillFrequency {
		skills = append(skills, skill)
	}
	sort.SliceStable(skills, func(i, j int) bool {
		ci, cj := s.analytics.SkillFrequency[skills[i]], s.analytics.SkillFrequency[skills[j]]
		if ci != cj {
			return ci > cj
		}
		return skills[i] < skills[j]
	})
	if len(skills) > topSkills {
		skills = skills[:topSkills]
	}
	stats.TopSkills = append(stats.TopSkills, skills...)

	return stats
}

// Analytics returns a copy of the aggregate counters.
func (s *FileStore) Analytics() Analytics {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := s.analytics.orEmpty()
	cp := Analytics{
		DailyStats:     make(map[string]DailyStat, len(out.DailyStats)),
		SourceStats:    make(map[string]int, len(out.SourceStats)),
		SkillFrequency: make(map[string]int, len(out.SkillFrequency)),
	}
	for k, v := range out.DailyStats {
		cp.DailyStats[k] = v
	}
	for k, v := range out.SourceStats {
		cp.SourceStats[k] = v
	}
	for k, v := range out.SkillFrequency {
		cp.SkillFrequency[k] = v
	}
	return cp
}

// ExportCSV writes a spreadsheet-friendly copy of the records (UTF-8 BOM,
// at most five skills per column) and returns its path. An empty path
// exports next to the store.
func (s *FileStore) ExportCSV(path string) (string, error) {
	if path == "" {
		path = s.path("jobs_excel.csv")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.writeCSV(path, true); err != nil {
		return "", err
	}
	return path, nil
}

// Close releases the sinks.
func (s *FileStore) Close() error {
	var errs []error
	for _, sink := range s.sinks {
		if err := sink.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", sink.Name(), err))
		}
	}
	return errors.Join(errs...)
}

func (s *FileStore) saveIndex() error {
	return writeJSON(s.path(IndexFile), index{Index: s.index, Updated: s.timestamp()})
}

func (s *FileStore) appendCSV(p jobs.Posting) error {
	f, err := os.OpenFile(s.path(CSVFile), os.O_APPEND|os.O_WRONLY|os.O_CREATE, 0o644)
	if err != nil {
		return fmt.Errorf("open %s: %w", CSVFile, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(csvRow(p, 0)); err != nil {
		return fmt.Errorf("write %s: %w", CSVFile, err)
	}
	w.Flush()
	return w.Error()
}

func (s *FileStore) writeCSV(path string, export bool) error {
	skillLimit := 0
	if export {
		skillLimit = exportSkills
	}

	return writeAtomic(path, func(f *os.File) error {
		if export {
			if _, err := f.WriteString("\ufeff"); err != nil {
				return err
			}
		}
		w := csv.NewWriter(f)
		if err := w.Write(CSVHeader); err != nil {
			return err
		}
		for _, p := range s.records.Jobs {
			if err := w.Write(csvRow(p, skillLimit)); err != nil {
				return err
			}
		}
		w.Flush()
		return w.Error()
	})
}

func (s *FileStore) timestamp() string {
	return s.now().Format(time.RFC3339)
}

func csvRow(p jobs.Posting, skillLimit int) []string {
	return []string{
		p.Date,
		p.Title,
		p.Company,
		p.Location,
		p.Link,
		p.Source,
		strconv.Itoa(p.RelevanceScore),
		strconv.Itoa(p.MatchScore),
		strconv.FormatFloat(p.CombinedScore, 'f', -1, 64),
		statusNew,
		joinSkills(p.MatchingSkills, skillLimit),
		joinSkills(p.MissingSkills, skillLimit),
		p.Salary,
		string(p.JobType),
	}
}

func joinSkills(skills []string, limit int) string {
	if limit > 0 && len(skills) > limit {
		skills = skills[:limit]
	}
	return strings.Join(skills, ", ")
}

func (a *Analytics) add(p jobs.Posting, date string) {
	if a.DailyStats == nil {
		a.DailyStats = make(map[string]DailyStat)
	}
	if a.SourceStats == nil {
		a.SourceStats = make(map[string]int)
	}
	if a.SkillFrequency == nil {
		a.SkillFrequency = make(map[string]int)
	}

	daily := a.DailyStats[date]
	daily.AvgScore = utils.Round1((daily.AvgScore*float64(daily.Count) + p.CombinedScore) / float64(daily.Count+1))
	daily.Count++
	a.DailyStats[date] = daily

	a.SourceStats[sourceOf(p)]++
	for _, skill := range p.MatchingSkills {
		a.SkillFrequency[strings.ToLower(skill)]++
	}
}

func (a Analytics) orEmpty() Analytics {
	if a.DailyStats == nil {
		a.DailyStats = map[string]DailyStat{}
	}
	if a.SourceStats == nil {
		a.SourceStats = map[string]int{}
	}
	if a.SkillFrequency == nil {
		a.SkillFrequency = map[string]int{}
	}
	return a
}

func analyticsTotal(a Analytics) int {
	total := 0
	for _, n := range a.SourceStats {
		total += n
	}
	return total
}

func sourceOf(p jobs.Posting) string {
	if p.Source == "" {
		return jobs.Unknown
	}
	return p.Source
}

func firstSeen(idx map[jobs.IdentityKey]string, p *jobs.Posting) string {
	if ts, ok := idx[p.Key()]; ok && ts != "" {
		return ts
	}
	return p.AddedAt
}

func sameKeys(a, b map[jobs.IdentityKey]string) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range b {
		if _, ok := a[k]; !ok {
			return false
		}
	}
	return true
}

func day(ts string) string {
	if t, err := time.Parse(time.RFC3339, ts); err == nil {
		return t.Format(jobs.DateLayout)
	}
	if len(ts) >= len(jobs.DateLayout) {
		return ts[:len(jobs.DateLayout)]
	}
	return jobs.Unknown
}

func average(values []int) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0
	for _, v := range values {
		sum += v
	}
	return utils.Round1(float64(sum) / float64(len(values)))
}

func countCSVRows(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return -1, err
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return -1, err
	}
	if len(rows) == 0 {
		return -1, nil
	}
	return len(rows) - 1, nil
}
