package arena

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mueseralex/tactical-arena-shooter/assets"
	"github.com/mueseralex/tactical-arena-shooter/shared/gamemath"
)

func TestArena_LineOfSight(t *testing.T) {
	a := New("test", 20, 20, []Seat{
		{Index: 1, Position: gamemath.Vec3{X: 18, Z: 10}},
		{Index: 0, Position: gamemath.Vec3{X: 2, Z: 10}},
	}, []Cover{{X: 9, Z: 8, W: 2, D: 4}})

	tests := []struct {
		name     string
		from, to gamemath.Vec3
		clear    bool
	}{
		{"through wall", gamemath.Vec3{X: 2, Z: 10}, gamemath.Vec3{X: 18, Z: 10}, false},
		{"over the top of the wall still blocked", gamemath.Vec3{X: 2, Y: 5, Z: 10}, gamemath.Vec3{X: 18, Y: 5, Z: 10}, false},
		{"passes north of wall", gamemath.Vec3{X: 2, Z: 2}, gamemath.Vec3{X: 18, Z: 2}, true},
		{"stops before wall", gamemath.Vec3{X: 2, Z: 10}, gamemath.Vec3{X: 8, Z: 10}, true},
		{"diagonal through corner", gamemath.Vec3{X: 8, Z: 7}, gamemath.Vec3{X: 12, Z: 13}, false},
		{"vertical segment beside wall", gamemath.Vec3{X: 12, Z: 0}, gamemath.Vec3{X: 12, Z: 20}, true},
		{"vertical segment through wall", gamemath.Vec3{X: 10, Z: 0}, gamemath.Vec3{X: 10, Z: 20}, false},
		{"grazes past the top edge", gamemath.Vec3{X: 2, Z: 12.5}, gamemath.Vec3{X: 18, Z: 12.5}, true},
		{"ends inside wall", gamemath.Vec3{X: 2, Z: 10}, gamemath.Vec3{X: 10, Z: 10}, false},
		{"entirely inside wall", gamemath.Vec3{X: 9.5, Z: 9}, gamemath.Vec3{X: 10.5, Z: 11}, false},
		{"zero length inside wall", gamemath.Vec3{X: 10, Z: 10}, gamemath.Vec3{X: 10, Z: 10}, false},
		{"zero length in the open", gamemath.Vec3{X: 4, Z: 4}, gamemath.Vec3{X: 4, Z: 4}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.clear, a.LineOfSight(tt.from, tt.to))
		})
	}
}

func TestArena_LineOfSight_SubCellCover(t *testing.T) {
	a := New("test", 10, 10, nil, []Cover{{X: 5.2, Z: 5.2, W: 0.5, D: 0.5}})

	assert.False(t, a.LineOfSight(gamemath.Vec3{X: 0, Z: 5.45}, gamemath.Vec3{X: 10, Z: 5.45}))
	assert.True(t, a.LineOfSight(gamemath.Vec3{X: 0, Z: 6.5}, gamemath.Vec3{X: 10, Z: 6.5}))
	assert.Len(t, a.Space.Objects(), 1)
}

func TestArena_SpawnBySeat(t *testing.T) {
	a := New("test", 20, 20, []Seat{
		{Index: 1, Position: gamemath.Vec3{X: 18}},
		{Index: 0, Position: gamemath.Vec3{X: 2}},
	}, nil)

	assert.Equal(t, gamemath.Vec3{X: 2}, a.Spawn(0))
	assert.Equal(t, gamemath.Vec3{X: 18}, a.Spawn(1))
	assert.Equal(t, gamemath.Vec3{X: 2}, a.Spawn(2))
	assert.False(t, a.HasCover())
	assert.True(t, a.LineOfSight(a.Spawn(0), a.Spawn(1)))
}

func TestDefaultArena(t *testing.T) {
	a := Default()
	assert.Len(t, a.Seats, 2)
	assert.NotEqual(t, a.Spawn(0), a.Spawn(1))
}

const testTMX = `<?xml version="1.0" encoding="UTF-8"?>
<map version="1.10" orientation="orthogonal" renderorder="right-down" width="20" height="10" tilewidth="16" tileheight="16" infinite="0" nextlayerid="3" nextobjectid="4">
 <objectgroup id="1" name="Spawns">
  <object id="1" x="32" y="80">
   <properties>
    <property name="seat" type="int" value="1"/>
    <property name="elevation" type="int" value="2"/>
   </properties>
  </object>
  <object id="2" x="288" y="80">
   <properties>
    <property name="seat" type="int" value="0"/>
   </properties>
  </object>
 </objectgroup>
 <objectgroup id="2" name="Cover">
  <object id="3" x="144" y="48" width="32" height="64"/>
 </objectgroup>
</map>`

func TestLoad(t *testing.T) {
	fsys := fstest.MapFS{
		"maps/yard.tmx": &fstest.MapFile{Data: []byte(testTMX)},
	}

	a, err := Load(fsys, "maps/yard.tmx")
	require.NoError(t, err)

	assert.Equal(t, "yard", a.Name)
	assert.Equal(t, 20, a.Width)
	assert.Equal(t, 10, a.Depth)
	assert.Equal(t, gamemath.Vec3{X: 18, Y: 0, Z: 5}, a.Spawn(0))
	assert.Equal(t, gamemath.Vec3{X: 2, Y: 2, Z: 5}, a.Spawn(1))
	assert.True(t, a.HasCover())
	assert.False(t, a.LineOfSight(a.Spawn(0), a.Spawn(1)))
}

func TestLoad_TooFewSeats(t *testing.T) {
	fsys := fstest.MapFS{
		"solo.tmx": &fstest.MapFile{Data: []byte(`<?xml version="1.0" encoding="UTF-8"?>
<map version="1.10" orientation="orthogonal" width="4" height="4" tilewidth="16" tileheight="16">
 <objectgroup id="1" name="Spawns">
  <object id="1" x="16" y="16"/>
 </objectgroup>
</map>`)},
	}

	_, err := Load(fsys, "solo.tmx")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "needs at least 2 spawn seats")
}

func TestLoadAll_Embedded(t *testing.T) {
	arenas, names, err := LoadAll(assets.Arenas, assets.ArenasDir)
	require.NoError(t, err)
	require.Contains(t, names, "foundry")

	foundry := arenas["foundry"]
	assert.Len(t, foundry.Seats, 2)
	assert.False(t, foundry.LineOfSight(foundry.Spawn(0), foundry.Spawn(1)),
		"the center wall separates the two seats")
}

func TestLoadAll_Empty(t *testing.T) {
	_, _, err := LoadAll(fstest.MapFS{}, "arenas")
	require.Error(t, err)
}
