// Package domain defines core data models, contracts and error values shared
// across the app. It contains plain types (wire/state) and interfaces only.
package domain
