package cli

// This file contains the host command.

import (
	"fmt"

	"github.com/nytrix/nytest/hostinfo"
	"github.com/urfave/cli/v2"
)

var hostinfoDetect = hostinfo.Detect

func (a *App) host(ctx *cli.Context) error {
	s := a.settings()
	t := s.Host()

	profile := s.Profile
	if name := ctx.String("profile"); name != "" {
		var ok bool
		if profile, ok = hostinfo.ParseProfile(name); !ok {
			return cli.Exit(fmt.Sprintf("unknown scheduling profile: %s", name), exitSetup)
		}
	}
	kind := hostinfo.Workload(ctx.String("kind"))
	if kind != hostinfo.WorkloadTest && kind != hostinfo.WorkloadBuild {
		return cli.Exit(fmt.Sprintf("unknown workload kind: %s", kind), exitSetup)
	}

	policy := s.Policy(0)
	policy.Profile = profile
	jobs := policy.Workers(t, kind)

	fmt.Fprintf(a.out, "OS:        %s\n", t.OSLabel())
	fmt.Fprintf(a.out, "Arch:      %s\n", t.Arch)
	fmt.Fprintf(a.out, "CPU:       %s\n", t.CPULabel())
	fmt.Fprintf(a.out, "Cores:     %d physical / %d logical (SMT %.2f)\n", t.Physical, t.Logical, t.SMTRatio())
	fmt.Fprintf(a.out, "Memory:    %s\n", t.MemLabel())
	fmt.Fprintf(a.out, "Profile:   %s\n", profile)
	fmt.Fprintf(a.out, "Recommend: %d (%s)\n", policy.Recommend(t, kind), kind)
	fmt.Fprintf(a.out, "Workers:   %d\n", jobs)
	if kind == hostinfo.WorkloadTest {
		fmt.Fprintf(a.out, "Bench:     %d\n", hostinfo.BenchWorkers(t, jobs, s.BenchJobs))
	}
	return nil
}
