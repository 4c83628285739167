// Package hips renders Hierarchical Progressive Surveys on the celestial
// sphere.
//
// # Overview
//
// A HiPS survey is a tree of tiles laid out on the HEALPix nested
// partition of the sphere: twelve tiles at order 0, each split in four at
// every following order. Tiles are fetched over HTTP (or from disk) by URL:
//
//	<base>/Norder<order>/Dir<(pix/10000)*10000>/Npix<pix>.<ext>
//
// The Engine owns what surveys share: the tile cache, the request facade
// and the decoding workers. A Survey walks its tree once per frame, asks
// for the tiles that are visible at the right resolution and draws the best
// texture available for each of them: the tile itself, an ancestor tile
// scaled to the right quadrant, or a piece of the allsky image.
//
// # Quick Start
//
//	eng := hips.NewEngine(asset.NewClient())
//	defer eng.Close()
//
//	dss := eng.NewSurvey("https://alasky.cds.unistra.fr/DSS/DSSColor")
//
//	for running() {
//	    dss.Render(&hips.RenderContext{
//	        Painter:    painter,
//	        Projection: proj,
//	        Observer:   observer,
//	    })
//	    eng.EndFrame()
//	}
//
// # Frames and suspension
//
// Nothing in the engine blocks. Requests and decodes that are not done yet
// report StatusPending and the tile is looked up again on the next frame;
// meanwhile an ancestor covers it. Engine methods must be called from a
// single goroutine, typically the render loop.
//
// # Tile states
//
// Missing tiles are remembered in their parent, so a 404 is only ever
// requested once and never requested for descendants. Transient failures
// (StatusTransient) are not remembered and are retried on later frames.
// A tile that fails to decode stays cached with an error and its parent is
// drawn instead.
package hips
