package http

import (
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"time"
)

// ServeDashboard serves the embedded dashboard page
func ServeDashboard(frontendFS fs.FS) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if frontendFS == nil {
			http.Error(w, "Dashboard not available", http.StatusNotFound)
			return
		}

		serveHTML(w, r, frontendFS, "index.html")
	}
}

// ServeTestPage serves a simple test page for debugging
func ServeTestPage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprintf(w, `
<!DOCTYPE html>
<html>
<head>
    <title>VegPulse - Test Page</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 40px; }
        .status { padding: 10px; margin: 10px 0; border-radius: 4px; }
        .success { background-color: #d4edda; color: #155724; }
        .info { background-color: #d1ecf1; color: #0c5460; }
        .warning { background-color: #fff3cd; color: #856404; }
        .error { background-color: #f8d7da; color: #721c24; }
    </style>
</head>
<body>
    <h1>VegPulse - Test Page</h1>
    <div class="status info">
        <strong>Status:</strong> Application is running
        <br><strong>Time:</strong> %s
    </div>
    <h2>Quick Links</h2>
    <ul>
        <li><a href="/">Dashboard</a></li>
        <li><a href="/api/health">Health Check</a></li>
        <li><a href="/api/version">Version Info</a></li>
        <li><a href="/api/results/files">Result Files</a></li>
        <li><a href="/ws">WebSocket Endpoint</a></li>
    </ul>
</body>
</html>
		`, time.Now().Format("2006-01-02 15:04:05"))
	}
}

// serveHTML serves an HTML file from the frontend filesystem with proper headers
func serveHTML(w http.ResponseWriter, r *http.Request, frontendFS fs.FS, name string) {
	file, err := frontendFS.Open(name)
	if err != nil {
		http.Error(w, "Page not found", http.StatusNotFound)
		return
	}
	defer file.Close()

	// Set security headers
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("X-Frame-Options", "DENY")
	w.Header().Set("X-XSS-Protection", "1; mode=block")
	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	if _, err := io.Copy(w, file); err != nil {
		http.Error(w, "Error rendering page", http.StatusInternalServerError)
		return
	}
}
