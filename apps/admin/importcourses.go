package main

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"

	"github.com/pkg/errors"

	"github.com/evolvere-edu/evolvere/core"
	"github.com/evolvere-edu/evolvere/core/course"
)

// importCourses loads courses from a CSV file with rows of the form
// code,name,institution,city,state. Duplicate codes are skipped.
func (cli *commandLine) importCourses(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	ctx := context.Background()
	r := csv.NewReader(f)
	r.FieldsPerRecord = 5

	var imported, skipped int
	for line := 1; ; line++ {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return errors.Wrapf(err, "reading line %d", line)
		}

		c := course.Course{
			Code:        core.CleanString(record[0], true /* lower */),
			Name:        core.CleanString(record[1]),
			Institution: core.CleanString(record[2]),
			City:        core.CleanString(record[3]),
			State:       core.CleanString(record[4]),
		}
		if c.Code == "" || c.Name == "" {
			return fmt.Errorf("line %d: code and name are required", line)
		}

		if _, err = cli.courseRepo.CreateCourse(ctx, c); err != nil {
			if errors.Cause(err) == course.ErrCodeExists {
				skipped++
				continue
			}
			return errors.Wrapf(err, "importing line %d", line)
		}
		imported++
	}

	logger.Printf("imported %d courses (%d skipped)", imported, skipped)
	return nil
}
