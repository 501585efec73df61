package dedupe_test

import (
	"context"
	"strconv"
	"sync"
	"testing"

	dedupe "github.com/okian/pitwall/internal/domain/dedupe"
	. "github.com/smartystreets/goconvey/convey"
)

func TestInMemoryDeduper(t *testing.T) {
	Convey("Given a new InMemoryDeduper", t, func() {
		ctx := context.Background()
		d := dedupe.NewInMemoryDeduper(dedupe.WithExpectedSize(16))

		So(d.Size(), ShouldEqual, 0)

		Convey("When a (race, driver) key is recorded once", func() {
			seen := d.SeenAndRecord(ctx, dedupe.Key("841", "20"))

			Convey("Then it is new and counted", func() {
				So(seen, ShouldBeFalse)
				So(d.Size(), ShouldEqual, 1)
			})

			Convey("And recording it again reports a duplicate", func() {
				So(d.SeenAndRecord(ctx, dedupe.Key("841", "20")), ShouldBeTrue)
				So(d.Size(), ShouldEqual, 1)
			})
		})

		Convey("When parts would collide if concatenated", func() {
			So(d.SeenAndRecord(ctx, dedupe.Key("1", "23")), ShouldBeFalse)
			So(d.SeenAndRecord(ctx, dedupe.Key("12", "3")), ShouldBeFalse)
			So(d.Size(), ShouldEqual, 2)
		})

		Convey("When recording concurrently", func() {
			var wg sync.WaitGroup
			var mu sync.Mutex
			fresh := 0
			for i := 0; i < 8; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					for j := 0; j < 100; j++ {
						if !d.SeenAndRecord(ctx, dedupe.Key("race", strconv.Itoa(j))) {
							mu.Lock()
							fresh++
							mu.Unlock()
						}
					}
				}()
			}
			wg.Wait()

			Convey("Then each key is new exactly once", func() {
				So(fresh, ShouldEqual, 100)
				So(d.Size(), ShouldEqual, 100)
			})
		})
	})
}
