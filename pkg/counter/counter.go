// Package counter implements lock-free job counters on top of the
// filesystem. A counter is the directory <root>/<group>/<field>; every task
// owns a subdirectory in it holding a single file whose name is the task's
// running total. Incrementing renames that file, so a partially applied
// update is never visible and no two tasks ever touch the same path.
package counter

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
)

var (
	ErrNegativeIncrement = errors.New("counter increments must be non-negative")
	ErrInvalidName       = errors.New("invalid counter name")
)

// Totals maps group -> field -> value.
type Totals map[string]map[string]int64

// Counters is the counter handle of a single task.
type Counters struct {
	root   string
	taskID string
}

func New(root, taskID string) *Counters {
	return &Counters{root: root, taskID: taskID}
}

// Increment adds delta to the task's value of (group, field).
func (c *Counters) Increment(group, field string, delta int64) error {
	if delta < 0 {
		return fmt.Errorf("%w: %s/%s by %d", ErrNegativeIncrement, group, field, delta)
	}

	dir, err := c.dir(group, field)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("error creating counter %s/%s: %w", group, field, err)
	}

	current, err := c.current(dir)
	if err != nil {
		return err
	}
	if delta == 0 {
		return nil
	}

	from := filepath.Join(dir, strconv.FormatInt(current, 10))
	to := filepath.Join(dir, strconv.FormatInt(current+delta, 10))
	if err := os.Rename(from, to); err != nil {
		return fmt.Errorf("error incrementing counter %s/%s: %w", group, field, err)
	}
	return nil
}

// Value returns the task's current value of (group, field).
func (c *Counters) Value(group, field string) (int64, error) {
	dir, err := c.dir(group, field)
	if err != nil {
		return 0, err
	}
	value, _, err := readValue(dir)
	return value, err
}

// current returns the task's value, creating the zero file on first use.
func (c *Counters) current(dir string) (int64, error) {
	value, found, err := readValue(dir)
	if err != nil || found {
		return value, err
	}
	f, err := os.Create(filepath.Join(dir, "0"))
	if err != nil {
		return 0, fmt.Errorf("error initializing counter: %w", err)
	}
	return 0, f.Close()
}

func (c *Counters) dir(group, field string) (string, error) {
	for _, name := range []string{group, field, c.taskID} {
		if name == "" || name == "." || name == ".." {
			return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
		}
	}
	return filepath.Join(c.root, url.PathEscape(group), url.PathEscape(field), url.PathEscape(c.taskID)), nil
}

// Aggregate sums every task's value of every counter under root.
func Aggregate(root string) (Totals, error) {
	totals := make(Totals)

	groups, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("error reading counters: %w", err)
	}
	for _, group := range groups {
		if !group.IsDir() {
			continue
		}
		groupName, err := url.PathUnescape(group.Name())
		if err != nil {
			return nil, err
		}

		fields, err := os.ReadDir(filepath.Join(root, group.Name()))
		if err != nil {
			return nil, fmt.Errorf("error reading counter group %s: %w", groupName, err)
		}
		for _, field := range fields {
			if !field.IsDir() {
				continue
			}
			fieldName, err := url.PathUnescape(field.Name())
			if err != nil {
				return nil, err
			}

			sum, err := sumTasks(filepath.Join(root, group.Name(), field.Name()))
			if err != nil {
				return nil, fmt.Errorf("error reading counter %s/%s: %w", groupName, fieldName, err)
			}
			if totals[groupName] == nil {
				totals[groupName] = make(map[string]int64)
			}
			totals[groupName][fieldName] = sum
		}
	}

	return totals, nil
}

func sumTasks(fieldDir string) (int64, error) {
	tasks, err := os.ReadDir(fieldDir)
	if err != nil {
		return 0, err
	}
	var sum int64
	for _, task := range tasks {
		if !task.IsDir() {
			continue
		}
		value, _, err := readValue(filepath.Join(fieldDir, task.Name()))
		if err != nil {
			return 0, err
		}
		sum += value
	}
	return sum, nil
}

// readValue returns the integer named file in a task directory.
func readValue(dir string) (int64, bool, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}

	var (
		value int64
		found bool
	)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		n, err := strconv.ParseInt(entry.Name(), 10, 64)
		if err != nil {
			continue
		}
		if found {
			return 0, false, fmt.Errorf("counter directory %s holds more than one value", dir)
		}
		value, found = n, true
	}
	return value, found, nil
}
