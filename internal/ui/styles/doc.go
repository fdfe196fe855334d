// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package styles holds the colors and Lip Gloss styles of chatdesk.

Two concrete palettes exist, Dark and Light. The user's theme preference
(system, dark or light) is resolved to one of them before any style is
built, so a Theme never adapts on its own:

	theme := styles.NewTheme(snapshot.Dark)
	fmt.Println(theme.UserLabel.Render("You"))

Command-line output uses ColorsFor directly with a renderer bound to its
output stream.
*/
package styles
