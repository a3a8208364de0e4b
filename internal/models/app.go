package models

// App is one launchable application in the registry.
type App struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Path string `json:"path"`
	Args string `json:"args"`
}
