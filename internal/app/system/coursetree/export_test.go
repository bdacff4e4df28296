package coursetree

import (
	"github.com/dalemusser/unigrading/internal/app/store/enrollment"
	"github.com/dalemusser/unigrading/internal/app/store/file"
)

// Test-only accessors for the external coursetree_test package.

func (s *Service) FileStore() *file.Store { return s.files }

func (s *Service) EnrollmentStore() *enrollment.Store { return s.enrollments }
