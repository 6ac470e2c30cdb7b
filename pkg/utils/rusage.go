// pkg/utils/rusage.go

package utils

import "syscall"

type Rusage struct {
	syscall.Rusage
}

// GetUtime returns user CPU time in seconds.
func (ru *Rusage) GetUtime() float64 {
	return float64(ru.Utime.Sec) + float64(ru.Utime.Usec)/1e6
}

// GetStime returns system CPU time in seconds.
func (ru *Rusage) GetStime() float64 {
	return float64(ru.Stime.Sec) + float64(ru.Stime.Usec)/1e6
}

// MaxRSS returns the peak resident set size in KiB.
func (ru *Rusage) MaxRSS() int64 {
	return int64(ru.Maxrss)
}

func GetRusage() *Rusage {
	var ru syscall.Rusage
	_ = syscall.Getrusage(syscall.RUSAGE_SELF, &ru)
	return &Rusage{ru}
}
