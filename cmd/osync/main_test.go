package main

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/chmdznr/odoo-recruit-sync/pkg/models"
)

func TestDefaultOutputName(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		key      string
		expected string
	}{
		{
			name:     "plain file",
			filename: "cv.pdf",
			key:      "attachments/2026/10/19/abc_att_1_cv.pdf",
			expected: "cv.pdf",
		},
		{
			name:     "parent traversal",
			filename: "../../.bashrc",
			key:      "attachments/2026/10/19/abc_att_2_file.bashrc",
			expected: "file.bashrc",
		},
		{
			name:     "absolute path",
			filename: "/tmp/x",
			key:      "attachments/2026/10/19/abc_att_3_tmpx.bin",
			expected: "tmpx.bin",
		},
		{
			name:     "windows separators",
			filename: `..\..\evil.exe`,
			key:      "attachments/2026/10/19/abc_att_4_evil.exe",
			expected: "evil.exe",
		},
		{
			name:     "empty name",
			filename: "",
			key:      "attachments/2026/10/19/abc_att_5_file.bin",
			expected: "file.bin",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := defaultOutputName(&models.Attachment{OriginalFilename: tt.filename, StorageKey: tt.key})
			assert.Equal(t, tt.expected, got)
		})
	}
}
