package engine

import (
	"os"
	"strings"
)

// cudaVisible reports whether a CUDA device appears usable: the NVIDIA
// driver control file exists and CUDA_VISIBLE_DEVICES does not mask all
// devices.
func cudaVisible() bool {
	if v, ok := os.LookupEnv("CUDA_VISIBLE_DEVICES"); ok {
		v = strings.TrimSpace(v)
		if v == "" || v == "-1" {
			return false
		}
	}
	_, err := os.Stat("/proc/driver/nvidia/version")
	return err == nil
}
