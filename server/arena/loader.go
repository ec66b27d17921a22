package arena

import (
	"io/fs"
	"path"
	"sort"
	"strings"

	"github.com/lafriks/go-tiled"
	"github.com/rotisserie/eris"

	"github.com/mueseralex/tactical-arena-shooter/shared/gamemath"
)

// Object group names in arena TMX files.
const (
	groupSpawns = "Spawns"
	groupCover  = "Cover"
)

// Load parses a TMX arena. Map coordinates are converted to world units of
// one tile: Tiled x becomes world X and Tiled y becomes world Z. Spawn
// objects carry an int "seat" property and an optional int "elevation".
func Load(fsys fs.FS, tmxPath string) (*Arena, error) {
	levelMap, err := tiled.LoadFile(tmxPath, tiled.WithFileSystem(fsys))
	if err != nil {
		return nil, eris.Wrapf(err, "load TMX %s", tmxPath)
	}
	if levelMap.TileWidth <= 0 || levelMap.TileHeight <= 0 {
		return nil, eris.Errorf("arena %s has no tile size", tmxPath)
	}

	tileW := float64(levelMap.TileWidth)
	tileH := float64(levelMap.TileHeight)

	var seats []Seat
	var cover []Cover
	for _, og := range levelMap.ObjectGroups {
		switch og.Name {
		case groupSpawns:
			for _, o := range og.Objects {
				seats = append(seats, Seat{
					Index: o.Properties.GetInt("seat"),
					Position: gamemath.Vec3{
						X: o.X / tileW,
						Y: float64(o.Properties.GetInt("elevation")),
						Z: o.Y / tileH,
					},
				})
			}
		case groupCover:
			for _, o := range og.Objects {
				if o.Width <= 0 || o.Height <= 0 {
					continue
				}
				cover = append(cover, Cover{
					X: o.X / tileW,
					Z: o.Y / tileH,
					W: o.Width / tileW,
					D: o.Height / tileH,
				})
			}
		}
	}

	if len(seats) < 2 {
		return nil, eris.Errorf("arena %s needs at least 2 spawn seats, has %d", tmxPath, len(seats))
	}

	name := strings.TrimSuffix(path.Base(tmxPath), ".tmx")
	return New(name, levelMap.Width, levelMap.Height, seats, cover), nil
}

// LoadAll loads every .tmx arena in dir, keyed by file stem, plus the sorted
// list of names.
func LoadAll(fsys fs.FS, dir string) (map[string]*Arena, []string, error) {
	pattern := path.Join(dir, "*.tmx")
	matches, err := fs.Glob(fsys, pattern)
	if err != nil {
		return nil, nil, eris.Wrapf(err, "glob %s", pattern)
	}
	if len(matches) == 0 {
		return nil, nil, eris.Errorf("no .tmx files found in %s", dir)
	}

	arenas := make(map[string]*Arena, len(matches))
	names := make([]string, 0, len(matches))
	for _, file := range matches {
		a, err := Load(fsys, file)
		if err != nil {
			return nil, nil, eris.Wrapf(err, "load %s", file)
		}
		arenas[a.Name] = a
		names = append(names, a.Name)
	}

	sort.Strings(names)
	return arenas, names, nil
}
