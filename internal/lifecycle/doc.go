// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

/*
Package lifecycle manages the webhostd process from the outside and the inside.

The daemon holds an flock on its PID file for as long as it runs, so a PID
file that can be locked belongs to a process that is gone:

	pf := lifecycle.NewPIDFile(cfg.PIDPath())
	if err := pf.Acquire(os.Getpid()); err != nil {
	    // another daemon is running
	}
	defer pf.Release()

The CLI spawns a detached daemon, waits for its control API to answer and
later signals it to stop:

	pid, err := lifecycle.SpawnDetached(binary, args, logPath)
	err = lifecycle.NewHealthChecker(url).WithHTTPClient(c).WaitUntilHealthy(ctx)
	err = lifecycle.Terminate(ctx, pid, 10*time.Second)
*/
package lifecycle
