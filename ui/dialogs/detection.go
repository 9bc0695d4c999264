// Package dialogs provides application dialogs.
package dialogs

import (
	"fmt"
	"strconv"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"

	"kolo-studio/internal/project"
)

// DetectionDialog edits the auto-annotation settings stored in the
// project file.
type DetectionDialog struct {
	settings *project.Settings
	window   fyne.Window

	modelEntry *widget.Entry
	confEntry  *widget.Entry
	mergeCheck *widget.Check

	onSave func(*project.Settings)
}

// NewDetectionDialog creates the settings dialog. onSave runs after the
// user confirms and the settings struct has been updated.
func NewDetectionDialog(settings *project.Settings, window fyne.Window, onSave func(*project.Settings)) *DetectionDialog {
	return &DetectionDialog{
		settings: settings,
		window:   window,
		onSave:   onSave,
	}
}

// Show displays the dialog.
func (d *DetectionDialog) Show() {
	d.modelEntry = widget.NewEntry()
	d.modelEntry.SetText(d.settings.ModelPath)
	d.modelEntry.SetPlaceHolder("path/to/model.onnx")

	d.confEntry = widget.NewEntry()
	d.confEntry.SetText(fmt.Sprintf("%.2f", d.settings.ConfThreshold))

	d.mergeCheck = widget.NewCheck("Merge near-duplicate detections", nil)
	d.mergeCheck.SetChecked(d.settings.MergeSimilar)

	form := widget.NewForm(
		widget.NewFormItem("Model (ONNX)", d.modelEntry),
		widget.NewFormItem("Confidence threshold", d.confEntry),
		widget.NewFormItem("", d.mergeCheck),
	)

	dlg := dialog.NewCustomConfirm(
		"Detection Settings",
		"Save",
		"Cancel",
		form,
		func(save bool) {
			if !save {
				return
			}
			d.applyChanges()
			if d.onSave != nil {
				d.onSave(d.settings)
			}
		},
		d.window,
	)
	dlg.Resize(fyne.NewSize(460, 260))
	dlg.Show()
}

func (d *DetectionDialog) applyChanges() {
	d.settings.ModelPath = d.modelEntry.Text
	if v, err := strconv.ParseFloat(d.confEntry.Text, 64); err == nil && v > 0 && v < 1 {
		d.settings.ConfThreshold = v
	}
	d.settings.MergeSimilar = d.mergeCheck.Checked
}
