// SPDX-License-Identifier: MPL-2.0

package issue

import "github.com/charmbracelet/glamour"

// glamourRender uses the real renderer with a style that needs no terminal.
func glamourRender(md string) (string, error) {
	return glamour.Render(md, "notty")
}
