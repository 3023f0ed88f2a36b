package jobinfo

import "time"

// Service is the read-only projection façade over a Repository,
// consumed by UI and reporting surfaces that have no business mutating
// job state directly.
type Service struct {
	repo Repository
}

// NewService wraps repo in a read-only façade.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) ByID(id string) (*JobInfo, error) {
	return s.repo.FindByID(id)
}

func (s *Service) ByName(name string, limit int) ([]*JobInfo, error) {
	return s.repo.FindByName(name, limit)
}

func (s *Service) ByNameAndTimeRange(name string, start, end time.Time, result ResultCode) ([]*JobInfo, error) {
	return s.repo.FindByNameAndTimeRange(name, start, end, result)
}

func (s *Service) MostRecentPerName() ([]*JobInfo, error) {
	return s.repo.FindAllMostRecent()
}

func (s *Service) DistinctJobNames() ([]string, error) {
	return s.repo.DistinctJobNames()
}
