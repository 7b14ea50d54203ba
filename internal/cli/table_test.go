package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/alexander-akhmetov/mat/internal/domain"
)

func TestStatusTable(t *testing.T) {
	items := []*domain.WorkItem{
		{ID: "US-001", Title: "Create model", Priority: 1, Status: domain.StatusCompleted},
		{ID: "US-002", Title: "List todos", Priority: domain.DefaultPriority, Status: domain.StatusPending},
	}

	var buf bytes.Buffer
	out := stripANSI(StatusTable(&buf, items))

	for _, s := range []string{"ID", "STATUS", "US-001", "completed", "Create model", "US-002", "pending", "List todos"} {
		assert.Contains(t, out, s)
	}
	assert.Contains(t, out, "│ -")
}

func TestFormatPriority(t *testing.T) {
	assert.Equal(t, "3", formatPriority(3))
	assert.Equal(t, "-", formatPriority(domain.DefaultPriority))
}
