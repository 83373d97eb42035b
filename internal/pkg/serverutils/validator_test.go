package serverutils

import (
	"testing"

	"essay-coach-be/internal/constant"
	"essay-coach-be/internal/dto"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateRequestAllowsUntitledDocuments(t *testing.T) {
	req := &dto.CreateDocumentRequest{
		Content:  "An untitled draft is still a draft.",
		Category: constant.DocumentCategoryNarrative,
	}
	assert.NoError(t, ValidateRequest(req))
}

func TestValidateRequestFlattensFailures(t *testing.T) {
	err := ValidateRequest(&dto.CreateDocumentRequest{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Content")
	assert.Contains(t, err.Error(), "Category")
}
