// Package memory sizes the Go heap for a container that also hosts ffmpeg
// and yt-dlp child processes.
//
// [ConfigureFromEnv] reads MEMORY_LIMIT (bytes, usually injected through the
// Kubernetes Downward API) and sets the runtime soft limit to MEMORY_RATIO of
// it. An explicit GOMEMLIMIT always wins.
//
//	env:
//	  - name: MEMORY_LIMIT
//	    valueFrom:
//	      resourceFieldRef:
//	        resource: limits.memory
package memory
