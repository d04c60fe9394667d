package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// CandidateAnswersKey returns the cache key for a candidate's autosaved answers.
func (r *CacheKeyStruct) CandidateAnswersKey(examID string, candidateID int) string {
	return fmt.Sprintf("candidate:%d:exam:%s:answers", candidateID, examID)
}

// AttemptStartKey returns the cache key for an attempt's start timestamp.
func (r *CacheKeyStruct) AttemptStartKey(examID string, candidateID int) string {
	return fmt.Sprintf("candidate:%d:exam:%s:attempt_start", candidateID, examID)
}

// ExamDurationKey returns the cache key for an exam's duration in minutes.
func (r *CacheKeyStruct) ExamDurationKey(examID string) string {
	return fmt.Sprintf("exam:%s:duration", examID)
}

var CacheKey = NewCacheKeyStruct()
