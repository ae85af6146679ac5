// Package tray provides a system tray menu for the sign2text web server.
package tray

import (
	"sync"

	"github.com/getlantern/systray"

	"github.com/ayusman/sign2text/internal/announce"
)

// Tray represents the system tray application.
type Tray struct {
	onLanguage func(lang announce.Language)
	onOpen     func()
	onQuit     func()
	language   announce.Language
	mu         sync.RWMutex

	// Menu items stored for later updates
	menuEnglish     *systray.MenuItem
	menuHindi       *systray.MenuItem
	menuLastGesture *systray.MenuItem
}

// New creates a new Tray showing lang as the active language.
func New(lang announce.Language) *Tray {
	return &Tray{language: lang}
}

// OnLanguage sets the callback called when a language is picked.
func (t *Tray) OnLanguage(fn func(lang announce.Language)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onLanguage = fn
}

// OnOpen sets the callback called when the open menu item is clicked.
func (t *Tray) OnOpen(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onOpen = fn
}

// OnQuit sets the callback function to be called when the quit menu item is clicked.
func (t *Tray) OnQuit(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onQuit = fn
}

// Run starts the system tray application.
// This function blocks until Quit is called.
func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

// Quit stops the tray loop.
func (t *Tray) Quit() {
	systray.Quit()
}

// onReady is called when the system tray is ready.
// It sets up the menu structure.
func (t *Tray) onReady() {
	systray.SetTitle("Sign2Text")
	systray.SetTooltip("Sign2Text gesture announcements")

	t.mu.Lock()
	t.menuEnglish = systray.AddMenuItemCheckbox("English", "Announce in English", false)
	t.menuHindi = systray.AddMenuItemCheckbox("हिंदी", "Announce in Hindi", false)
	systray.AddSeparator()

	t.menuLastGesture = systray.AddMenuItem("Last: none", "Last announced gesture")
	t.menuLastGesture.Disable()
	systray.AddSeparator()
	t.mu.Unlock()

	menuOpen := systray.AddMenuItem("Open in Browser...", "Open the web interface")
	systray.AddSeparator()
	menuQuit := systray.AddMenuItem("Quit", "Quit Sign2Text")

	t.mu.RLock()
	t.updateChecks(t.language)
	t.mu.RUnlock()

	// Handle menu item clicks in a separate goroutine
	go func() {
		for {
			select {
			case <-t.menuEnglish.ClickedCh:
				t.handleLanguage(announce.English)
			case <-t.menuHindi.ClickedCh:
				t.handleLanguage(announce.Hindi)
			case <-menuOpen.ClickedCh:
				t.handleOpen()
			case <-menuQuit.ClickedCh:
				t.handleQuit()
				return
			}
		}
	}()
}

// onExit is called when the system tray is about to exit.
func (t *Tray) onExit() {}

// updateChecks marks the active language. Callers hold t.mu.
func (t *Tray) updateChecks(lang announce.Language) {
	if t.menuEnglish == nil || t.menuHindi == nil {
		return
	}
	if lang == announce.Hindi {
		t.menuHindi.Check()
		t.menuEnglish.Uncheck()
	} else {
		t.menuEnglish.Check()
		t.menuHindi.Uncheck()
	}
}

// handleLanguage handles a click on a language item.
func (t *Tray) handleLanguage(lang announce.Language) {
	t.mu.Lock()
	t.language = lang
	t.updateChecks(lang)
	callback := t.onLanguage
	t.mu.Unlock()

	// Call the callback outside the lock to prevent deadlocks
	if callback != nil {
		callback(lang)
	}
}

// handleOpen handles the open menu item click.
func (t *Tray) handleOpen() {
	t.mu.RLock()
	callback := t.onOpen
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}
}

// handleQuit handles the quit menu item click.
func (t *Tray) handleQuit() {
	t.mu.RLock()
	callback := t.onQuit
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}

	systray.Quit()
}

// SetLastGesture updates the last gesture display in the menu.
func (t *Tray) SetLastGesture(name string) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.menuLastGesture != nil {
		if name == "" {
			t.menuLastGesture.SetTitle("Last: none")
		} else {
			t.menuLastGesture.SetTitle("Last: " + name)
		}
	}
}

// SetLanguage updates the checked language without firing the callback.
func (t *Tray) SetLanguage(lang announce.Language) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.language = lang
	t.updateChecks(lang)
}

// Language returns the active language.
func (t *Tray) Language() announce.Language {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.language
}
