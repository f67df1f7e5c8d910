//go:build !linux

package sched

import (
	"github.com/rttune/rttune/pkg/cpuset"
	"github.com/rttune/rttune/pkg/types"
)

type stubApplier struct{}

func newPlatformApplier() Applier { return stubApplier{} }

func (stubApplier) Read(int) (Attrs, error)          { return Attrs{}, ErrUnsupported }
func (stubApplier) Commit(int, Attrs) error          { return ErrUnsupported }
func (stubApplier) SetAffinity(int, cpuset.Set) error { return ErrUnsupported }
func (stubApplier) Affinity(int) (cpuset.Set, error) { return cpuset.Set{}, ErrUnsupported }

func (stubApplier) NativePriority(types.Policy, int) int  { return 0 }
func (stubApplier) AbstractPriority(types.Policy, int) int { return 0 }
