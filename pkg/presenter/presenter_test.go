package presenter

import (
	"bytes"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func newCapturedPresenter() (*TerminalPresenter, *bytes.Buffer, *bytes.Buffer) {
	var out, errOut bytes.Buffer
	return NewWithOptions(&out, &errOut, ColorNever), &out, &errOut
}

func TestErrorGoesToErrorOutput(t *testing.T) {
	p, out, errOut := newCapturedPresenter()

	p.Error(errors.New("boom"), "saving draft")

	assert.Empty(t, out.String())
	assert.Contains(t, errOut.String(), "[ERROR] saving draft: boom")
}

func TestErrorWithoutContext(t *testing.T) {
	p, _, errOut := newCapturedPresenter()

	p.Error(errors.New("boom"), "")

	assert.Equal(t, "[ERROR] boom\n", errOut.String())
}

func TestNilErrorPrintsNothing(t *testing.T) {
	p, _, errOut := newCapturedPresenter()

	p.Error(nil, "context")

	assert.Empty(t, errOut.String())
}

func TestSuccessWarningInfo(t *testing.T) {
	p, out, _ := newCapturedPresenter()

	p.Success("skill committed")
	p.Warning("feed unreachable")
	p.Info("3 podcasts saved")

	output := out.String()
	assert.Contains(t, output, "✓ skill committed")
	assert.Contains(t, output, "⚠ feed unreachable")
	assert.Contains(t, output, "3 podcasts saved")
}

func TestSectionUnderlinesTitle(t *testing.T) {
	p, out, _ := newCapturedPresenter()

	p.Section("Skills")

	assert.Equal(t, "Skills\n------\n", out.String())
}

func TestQuietModeSuppressesOutput(t *testing.T) {
	p, out, errOut := newCapturedPresenter()
	p.SetQuiet(true)

	assert.True(t, p.IsQuiet())

	p.Success("done")
	p.Warning("careful")
	p.Info("note")
	p.Section("title")
	p.Separator()
	assert.Empty(t, out.String())

	// Errors always surface.
	p.Error(errors.New("boom"), "")
	assert.Contains(t, errOut.String(), "boom")
}
