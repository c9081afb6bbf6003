// Package presentation defines the capability set the page logic uses to
// update what the user sees, and a recording implementation of it that the
// HTTP layer serializes and streams to the browser.
package presentation

// Target names a placeholder on a page.
type Target string

const (
	PreviewContainer  Target = "previewContainer"
	PreviewImage      Target = "previewImage"
	FileName          Target = "fileName"
	FileSize          Target = "fileSize"
	FileType          Target = "fileType"
	FileDimensions    Target = "fileDimensions"
	FileCamera        Target = "fileCamera"
	ProgressContainer Target = "progressContainer"
	ProgressText      Target = "progressText"
	DemoModeBadge     Target = "demoModeBadge"
)

// Port is what page logic may change on screen.
type Port interface {
	SetText(target Target, text string)
	SetImage(target Target, src string)
	SetProgress(percent int, label string)
	SetVisible(target Target, visible bool)
}

// Navigator moves the browsing context to another page.
type Navigator interface {
	Navigate(location string)
}

// Notifier shows a blocking notification to the user.
type Notifier interface {
	Alert(message string)
}

// Surface is the full set of page capabilities.
type Surface interface {
	Port
	Navigator
	Notifier
}
