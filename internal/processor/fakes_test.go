package processor

import (
	"context"
	"fmt"
	"sync"

	"gorm.io/gorm"

	"github.com/Muco0l/RecruitFlow-AI-ATS/internal/storage/models"
	"github.com/Muco0l/RecruitFlow-AI-ATS/internal/types"
)

// memStore 内存版MatchStore, 复刻存储层的Upsert语义供流水线测试用
type memStore struct {
	mu         sync.Mutex
	jobs       map[string]*models.JobDescription
	candidates map[string]*models.Candidate // email -> candidate
	matches    map[string]*models.Match     // jobID:candidateID -> match
	nextID     int
}

func newMemStore() *memStore {
	return &memStore{
		jobs:       make(map[string]*models.JobDescription),
		candidates: make(map[string]*models.Candidate),
		matches:    make(map[string]*models.Match),
	}
}

func (s *memStore) genID(prefix string) string {
	s.nextID++
	return fmt.Sprintf("%s-%04d", prefix, s.nextID)
}

func (s *memStore) CreateJob(ctx context.Context, job *models.JobDescription) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if job.JobID == "" {
		job.JobID = s.genID("job")
	}
	s.jobs[job.JobID] = job
	return nil
}

func (s *memStore) GetJob(ctx context.Context, jobID string) (*models.JobDescription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return job, nil
}

func (s *memStore) UpsertCandidateByEmail(ctx context.Context, candidate *models.Candidate) (*models.Candidate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.candidates[candidate.Email]; ok {
		// 整体覆盖提取字段, 保留首次生成的ID
		candidate.CandidateID = existing.CandidateID
		candidate.CVObjectKey = existing.CVObjectKey
	} else if candidate.CandidateID == "" {
		candidate.CandidateID = s.genID("cand")
	}
	cp := *candidate
	s.candidates[candidate.Email] = &cp
	return &cp, nil
}

func (s *memStore) UpdateCandidateCVObjectKey(ctx context.Context, candidateID string, objectKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.candidates {
		if c.CandidateID == candidateID {
			c.CVObjectKey = objectKey
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (s *memStore) UpsertMatch(ctx context.Context, match *models.Match) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := match.JobID + ":" + match.CandidateID
	if existing, ok := s.matches[key]; ok {
		// 只覆盖分数和入围标记, email_sent保持不动
		existing.Score = match.Score
		existing.IsShortlisted = match.IsShortlisted
		match.MatchID = existing.MatchID
		match.EmailSent = existing.EmailSent
		return nil
	}
	if match.MatchID == "" {
		match.MatchID = s.genID("match")
	}
	cp := *match
	s.matches[key] = &cp
	return nil
}

func (s *memStore) ListPendingNotifications(ctx context.Context, jobID string) ([]types.PendingNotification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var pending []types.PendingNotification
	for _, m := range s.matches {
		if m.JobID != jobID || !m.IsShortlisted || m.EmailSent {
			continue
		}
		var name, email string
		for _, c := range s.candidates {
			if c.CandidateID == m.CandidateID {
				name, email = c.Name, c.Email
				break
			}
		}
		title := ""
		if job, ok := s.jobs[jobID]; ok {
			title = job.Title
		}
		pending = append(pending, types.PendingNotification{
			MatchID:        m.MatchID,
			JobID:          m.JobID,
			JobTitle:       title,
			CandidateID:    m.CandidateID,
			CandidateName:  name,
			CandidateEmail: email,
			Score:          m.Score,
		})
	}
	return pending, nil
}

func (s *memStore) MarkEmailSent(ctx context.Context, matchID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.matches {
		if m.MatchID == matchID {
			if m.EmailSent {
				return false, nil
			}
			m.EmailSent = true
			return true, nil
		}
	}
	return false, nil
}

func (s *memStore) matchFor(jobID, candidateID string) *models.Match {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.matches[jobID+":"+candidateID]
}

// ----- 组件替身 -----

type fakeTextExtractor struct {
	// basename -> 文本; 没配置的文件返回错误
	texts map[string]string
}

func (f *fakeTextExtractor) ExtractFromFile(ctx context.Context, filePath string) (string, error) {
	for name, text := range f.texts {
		if len(filePath) >= len(name) && filePath[len(filePath)-len(name):] == name {
			return text, nil
		}
	}
	return "", fmt.Errorf("无法解析文件 %s", filePath)
}

type fakeProfileExtractor struct {
	fn func(cvText string) (*types.CandidateProfile, error)
}

func (f *fakeProfileExtractor) Extract(ctx context.Context, cvText string) (*types.CandidateProfile, error) {
	return f.fn(cvText)
}

type fakeSummarizer struct {
	summary string
	err     error
}

func (f *fakeSummarizer) Summarize(ctx context.Context, jdText string) (string, error) {
	return f.summary, f.err
}

type fakeScorer struct {
	fn func(profile *types.CandidateProfile) (int, error)
}

func (f *fakeScorer) Score(ctx context.Context, jobSummary string, profile *types.CandidateProfile) (int, error) {
	return f.fn(profile)
}

// recordingNotifier 记录发送过的邀请
type recordingNotifier struct {
	enabled bool
	sent    []types.PendingNotification
	failFor map[string]bool // email -> 是否模拟发送失败
}

func (n *recordingNotifier) Enabled() bool {
	return n.enabled
}

func (n *recordingNotifier) SendInterviewInvite(ctx context.Context, p types.PendingNotification) error {
	if n.failFor[p.CandidateEmail] {
		return fmt.Errorf("SMTP发送失败: %s", p.CandidateEmail)
	}
	n.sent = append(n.sent, p)
	return nil
}
