/*
Package workers sizes concurrency limits from the CPU quota of the container.

runtime.NumCPU reports the host's cores; GOMAXPROCS follows the cgroup limit
(Go 1.19+), so a pod limited to 2 cores on a 64-core node gets 2, not 64.
The server uses [ForCPU] for the default MAX_CONCURRENT_JOBS, which bounds
how many ffmpeg processes run at once:

	maxJobs := workers.ForCPU(4) // one encode per CPU, never more than 4

Setting CLIP_WORKERS to a positive integer pins the result:

	CLIP_WORKERS=1   # serialize every encode
*/
package workers
