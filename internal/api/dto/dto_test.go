package dto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util/errorutil"
)

func TestValidate_ReportsJSONFieldNames(t *testing.T) {
	err := Validate(CreateTicketRequest{Priority: "urgent"})

	require.Error(t, err)
	fields := apperrors.FieldErrors(err)
	assert.Equal(t, "this field is required", fields["subject"])
	assert.Equal(t, "this field is required", fields["description"])
	assert.Contains(t, fields["priority"], "must be one of")
}

func TestValidate_OK(t *testing.T) {
	assert.NoError(t, Validate(CreateTicketRequest{Subject: "VPN", Description: "down", Severity: domain.LevelHigh}))
	assert.NoError(t, Validate(CategoryRequest{Name: "Network", Color: "#aabbcc"}))
}

func TestValidate_EmailAndColor(t *testing.T) {
	err := Validate(RegisterRequest{Username: "x", Email: "nope", Password: "p", PasswordConfirm: "p"})
	assert.Equal(t, "must be a valid email address", apperrors.FieldErrors(err)["email"])

	err = Validate(CategoryRequest{Name: "Network", Color: "blue"})
	assert.Contains(t, apperrors.FieldErrors(err), "color")
}

func TestUpdateTicketRequest_ToInput(t *testing.T) {
	status := domain.TicketStatusResolved
	in := UpdateTicketRequest{Status: &status, Unassign: true}.ToInput()

	require.NotNil(t, in.Status)
	assert.Equal(t, domain.TicketStatusResolved, *in.Status)
	assert.True(t, in.ClearAssignee)
	assert.Nil(t, in.AssigneeID)
}

func TestValidate_MalformedIDs(t *testing.T) {
	bad := "abc"
	good := "3f2b8c1e-9d4a-4c7e-8a52-1b6f0e2d9c47"

	err := Validate(CreateTicketRequest{Subject: "VPN", Description: "down", CategoryID: &bad, AssignedTo: &bad})
	fields := apperrors.FieldErrors(err)
	assert.Equal(t, "must be a valid id", fields["category_id"])
	assert.Equal(t, "must be a valid id", fields["assigned_to"])

	err = Validate(UpdateTicketRequest{CategoryID: &bad})
	assert.Contains(t, apperrors.FieldErrors(err), "category_id")

	err = Validate(AssignRequest{AssignedTo: &bad})
	assert.Contains(t, apperrors.FieldErrors(err), "assigned_to")

	err = Validate(TriggerRuleRequest{Name: "r", Keywords: "k", Action: domain.TriggerNotify, NotifyUserIDs: []string{good, bad}})
	assert.Equal(t, "must be a valid id", apperrors.FieldErrors(err)["notify_users[1]"])

	assert.NoError(t, Validate(AssignRequest{AssignedTo: &good}))
	assert.NoError(t, Validate(AssignRequest{}))
}
